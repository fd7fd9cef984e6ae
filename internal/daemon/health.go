package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/harun/relay/internal/logger"
	"github.com/harun/relay/pkg/backend"
	"github.com/harun/relay/pkg/relay"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const healthProbeTimeout = 10 * time.Second

// HealthReport is the outcome of one backend liveness probe
type HealthReport struct {
	Up        bool
	Latency   time.Duration
	CheckedAt time.Time
	Detail    string
	Err       error
}

// String renders the report for the CLI
func (r HealthReport) String() string {
	if !r.Up {
		return fmt.Sprintf("unreachable (%v)", r.Err)
	}
	return fmt.Sprintf("ok (%dms)", r.Latency.Milliseconds())
}

// ProbeBackend checks backend liveness once. Only a 2xx answer counts as up.
func ProbeBackend(ctx context.Context, prober relay.Prober) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	start := time.Now()
	resp, err := prober.Health(ctx)
	if err == nil && !resp.Success() {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		err = fmt.Errorf("%w: health check returned status %d", backend.ErrUnavailable, status)
	}
	report := HealthReport{
		Up:        err == nil,
		Latency:   time.Since(start),
		CheckedAt: time.Now(),
		Err:       err,
	}
	if resp != nil {
		report.Detail = resp.Text()
	}
	return report
}

// healthMonitor probes the backend on a cron schedule and publishes the result
type healthMonitor struct {
	prober   relay.Prober
	schedule string
	publish  func(up bool)
	logger   zerolog.Logger

	mu   sync.RWMutex
	last HealthReport
	cron *cron.Cron
}

func newHealthMonitor(prober relay.Prober, schedule string, publish func(bool), zl zerolog.Logger) *healthMonitor {
	return &healthMonitor{
		prober:   prober,
		schedule: schedule,
		publish:  publish,
		logger:   logger.Component(zl, "health"),
	}
}

// Probe runs one probe, records it and logs the outcome. A down backend is not an error.
func (h *healthMonitor) Probe(ctx context.Context) HealthReport {
	report := ProbeBackend(ctx, h.prober)

	h.mu.Lock()
	previous := h.last
	h.last = report
	h.mu.Unlock()

	if h.publish != nil {
		h.publish(report.Up)
	}

	switch {
	case !report.Up:
		h.logger.Warn().Err(report.Err).Dur("latency", report.Latency).Msg("Backend health check failed")
	case !previous.Up && !previous.CheckedAt.IsZero():
		h.logger.Info().Dur("latency", report.Latency).Msg("Backend is reachable again")
	default:
		h.logger.Debug().Dur("latency", report.Latency).Msg("Backend health check passed")
	}

	return report
}

// Last returns the most recent report
func (h *healthMonitor) Last() HealthReport {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.last
}

// Start schedules periodic probes. An empty schedule disables them.
func (h *healthMonitor) Start(ctx context.Context) error {
	if h.schedule == "" {
		h.logger.Debug().Msg("Scheduled health checks disabled")
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(h.schedule, func() { h.Probe(ctx) }); err != nil {
		return fmt.Errorf("invalid health schedule %q: %w", h.schedule, err)
	}
	c.Start()

	h.mu.Lock()
	h.cron = c
	h.mu.Unlock()

	h.logger.Info().Str("schedule", h.schedule).Msg("Scheduled health checks started")
	return nil
}

// Stop stops scheduling and waits for a running probe
func (h *healthMonitor) Stop() {
	h.mu.Lock()
	c := h.cron
	h.cron = nil
	h.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}
