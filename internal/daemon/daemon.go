package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/harun/relay/internal/config"
	"github.com/harun/relay/internal/logger"
	"github.com/harun/relay/internal/metrics"
	"github.com/harun/relay/internal/telegram"
	"github.com/rs/zerolog"
)

const (
	shutdownTimeout = 30 * time.Second
	queueWarnAfter  = 2 * time.Minute
)

// Daemon represents the relay daemon service
type Daemon struct {
	config *config.Config
	logger *logger.Logger

	// Core modules
	core     *Core
	metrics  *metrics.Metrics
	pipeline *Pipeline
	health   *healthMonitor

	// Services
	metricsServer *http.Server
	metricsAddr   string

	// Telegram
	telegramBot *telegram.Bot
	telegramCmd *telegram.Commands

	// Internal
	lifecycle *LifecycleManager

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startTime time.Time
	running   bool
	mu        sync.RWMutex
}

// Status is a point-in-time view of the daemon
type Status struct {
	Running   bool
	StartTime time.Time
	Uptime    time.Duration
	Sessions  int
	Lanes     int
	Pending   int
	Backend   HealthReport
}

var newTelegramBot = func(cfg config.TelegramConfig, logger zerolog.Logger, opts telegram.Options) (*telegram.Bot, error) {
	return telegram.New(cfg, logger, opts)
}

// New creates a new daemon instance. A configuration the daemon cannot run
// with, such as a missing Telegram token, is rejected here.
func New(cfg *config.Config, log *logger.Logger) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		config:  cfg,
		logger:  log,
		metrics: metrics.NewMetrics(),
		ctx:     ctx,
		cancel:  cancel,
	}

	if err := d.initializeCoreModules(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize core modules: %w", err)
	}

	if err := d.initializeServices(); err != nil {
		cancel()
		_ = d.pipeline.Close(context.Background())
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return d, nil
}

func (d *Daemon) initializeCoreModules() error {
	zl := d.logger.Zerolog()

	core, err := NewCore(d.config, zl, d.metrics)
	if err != nil {
		return err
	}
	d.core = core
	daemonLog := d.logger.Component("daemon")
	daemonLog.Info().
		Str("backend", core.Backend.BaseURL()).
		Str("adopt_policy", d.config.Session.AdoptPolicy).
		Msg("Relay core initialized")

	d.pipeline, err = NewPipeline(core.Service, PipelineOptions{
		DirectChannel: "direct",
		WarnAfter:     queueWarnAfter,
		Observer:      d.metrics,
	}, zl)
	if err != nil {
		return err
	}
	d.health = newHealthMonitor(core.Backend, d.config.Health.Schedule, d.metrics.SetBackendUp, zl)
	d.lifecycle = NewLifecycleManager(d.config.DataDir, zl)

	return nil
}

func (d *Daemon) initializeServices() error {
	zl := d.logger.Zerolog()

	bot, err := newTelegramBot(d.config.Telegram, zl, telegram.Options{
		MaxInFlight: d.config.Relay.MaxInFlight,
		Observer:    d.metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telegram bot: %w", err)
	}
	d.telegramBot = bot
	d.telegramCmd = telegram.NewCommands(bot)

	ingress := newTelegramIngressChannel(bot, d.telegramCmd, bot, d.config.Telegram, d.metrics, zl)
	if err := d.pipeline.Register(ingress); err != nil {
		return err
	}

	if d.config.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", d.metrics.Handler())
		d.metricsServer = &http.Server{
			Addr:              d.config.Metrics.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	return nil
}

// Start starts all services; it returns once Telegram polling is running
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	logger := d.logger.Run(uuid.NewString())
	logger.Info().Msg("Starting relay daemon")

	if err := d.lifecycle.Start(); err != nil {
		d.setStopped()
		return fmt.Errorf("failed to start lifecycle manager: %w", err)
	}

	// The startup probe is informational; a down backend does not stop the daemon.
	report := d.health.Probe(d.ctx)
	logger.Info().
		Bool("backend_up", report.Up).
		Str("backend", d.core.Backend.BaseURL()).
		Msg("Startup backend health check")

	if err := d.health.Start(d.ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to schedule backend health checks")
	}

	if err := d.startMetricsServer(logger); err != nil {
		logger.Warn().Err(err).Msg("Failed to start metrics listener")
	}

	if err := d.pipeline.Start(d.ctx); err != nil {
		d.abortStart()
		return fmt.Errorf("failed to start ingress channels: %w", err)
	}
	logger.Info().Strs("channels", d.pipeline.Channels()).Msg("Ingress channels started")

	logger.Info().Strs("commands", d.telegramCmd.GetRegisteredCommands()).Msg("Telegram commands registered")
	if err := d.telegramCmd.Publish(); err != nil {
		logger.Warn().Err(err).Msg("Failed to publish Telegram command menu")
	}

	if err := d.telegramBot.Start(d.ctx); err != nil {
		d.abortStart()
		return fmt.Errorf("failed to start telegram bot: %w", err)
	}

	logger.Info().Msg("Daemon started successfully")

	return nil
}

func (d *Daemon) startMetricsServer(logger zerolog.Logger) error {
	if d.metricsServer == nil {
		return nil
	}

	ln, err := net.Listen("tcp", d.metricsServer.Addr)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.metricsAddr = ln.Addr().String()
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.metricsServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics listener failed")
		}
	}()

	logger.Info().Str("addr", ln.Addr().String()).Msg("Metrics listener started")
	return nil
}

// Stop stops all services. In-flight turns get until the shutdown timeout to
// finish and are not cancelled before that.
func (d *Daemon) Stop() error {
	status := d.Status()

	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not running")
	}
	d.running = false
	d.mu.Unlock()

	logger := d.logger.Zerolog()
	logger.Info().
		Dur("uptime", status.Uptime).
		Int("sessions", status.Sessions).
		Int("lanes", status.Lanes).
		Int("pending", status.Pending).
		Msg("Stopping relay daemon")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if d.telegramBot != nil && d.telegramBot.IsRunning() {
		if err := d.telegramBot.Stop(ctx); err != nil {
			logger.Error().Err(err).Msg("Failed to stop telegram bot")
		}
	}

	if err := d.pipeline.Stop(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to stop ingress channels")
	}

	d.health.Stop()

	if err := d.pipeline.Close(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to close participant lanes")
	}
	logger.Info().Msg("Participant lanes closed")

	if d.metricsServer != nil {
		if err := d.metricsServer.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("Failed to stop metrics listener")
		}
	}

	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("All goroutines stopped")
	case <-time.After(5 * time.Second):
		logger.Warn().Msg("Timeout waiting for goroutines to stop")
	}

	if err := d.lifecycle.Stop(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop lifecycle manager")
	}

	logger.Info().Msg("Daemon stopped successfully")

	return nil
}

// abortStart undoes a partial Start
func (d *Daemon) abortStart() {
	d.health.Stop()
	_ = d.pipeline.Stop(context.Background())
	if d.metricsServer != nil {
		_ = d.metricsServer.Close()
	}
	_ = d.lifecycle.Stop()
	d.setStopped()
}

func (d *Daemon) setStopped() {
	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
}

// Status returns the daemon status
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{
		Running:  d.running,
		Sessions: d.core.Directory.Len(),
		Lanes:    d.pipeline.Lanes(),
		Pending:  d.pipeline.Pending(),
		Backend:  d.health.Last(),
	}

	if d.running {
		status.Uptime = time.Since(d.startTime)
		status.StartTime = d.startTime
	}

	return status
}

// Wait blocks until SIGINT or SIGTERM, then stops the daemon
func (d *Daemon) Wait() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	sig := <-sigChan
	log := d.logger.Component("daemon")
	log.Info().Str("signal", sig.String()).Msg("Received signal")

	if err := d.Stop(); err != nil {
		log.Error().Err(err).Msg("Failed to stop daemon")
	}
}

// MetricsAddr returns the bound metrics listener address, if any
func (d *Daemon) MetricsAddr() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.metricsAddr
}
