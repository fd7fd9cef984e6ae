package daemon

import (
	"fmt"

	"github.com/harun/relay/internal/config"
	"github.com/harun/relay/internal/metrics"
	"github.com/harun/relay/pkg/backend"
	"github.com/harun/relay/pkg/relay"
	"github.com/harun/relay/pkg/session"
	"github.com/rs/zerolog"
)

// Core is the relay wiring shared by the daemon and one-shot CLI commands
type Core struct {
	Backend   *backend.Client
	Directory *session.Directory
	Relay     *relay.Relay
	Service   *relay.Service
}

// NewCore builds the backend client, session directory and relay service.
// m may be nil when nothing is exported.
func NewCore(cfg *config.Config, logger zerolog.Logger, m *metrics.Metrics) (*Core, error) {
	var (
		backendOpts     []backend.Option
		sessionObserver session.Observer
		relayObserver   relay.Observer
	)
	if m != nil {
		backendOpts = append(backendOpts, backend.WithObserver(m))
		sessionObserver = m
		relayObserver = m
	}

	client, err := backend.New(backend.Config{
		BaseURL:  cfg.Backend.URL,
		Username: cfg.Backend.Username,
		Password: cfg.Backend.Password,
		Timeout:  cfg.Backend.Timeout(),
	}, logger, backendOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}

	policy, err := session.ParseAdoptPolicy(cfg.Session.AdoptPolicy)
	if err != nil {
		return nil, err
	}

	directory := session.NewDirectory(client, session.Options{
		TitlePrefix: cfg.Session.TitlePrefix,
		Adopt:       policy,
		Observer:    sessionObserver,
	}, logger)

	rl := relay.New(client, relay.Options{MaxDisplayChars: cfg.Relay.MaxDisplayChars}, logger)

	service := relay.NewService(directory, rl, client, relay.ServiceOptions{
		CommandPrefix: cfg.Telegram.CommandPrefix,
		Observer:      relayObserver,
	}, logger)

	return &Core{
		Backend:   client,
		Directory: directory,
		Relay:     rl,
		Service:   service,
	}, nil
}
