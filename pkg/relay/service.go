package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harun/relay/pkg/backend"
	"github.com/harun/relay/pkg/session"
	"github.com/rs/zerolog"
)

// Outcome tags a turn result
type Outcome string

const (
	OutcomeSuccess       Outcome = "success"
	OutcomeSessionError  Outcome = "session_error"
	OutcomeResponseError Outcome = "response_error"
)

// Failure distinguishes why a turn did not succeed
type Failure string

const (
	FailureNone      Failure = ""
	FailureTransport Failure = "transport"
	FailureMalformed Failure = "malformed"
)

// Command is an explicit participant command
type Command string

const (
	CommandHelp       Command = "help"
	CommandSession    Command = "session"
	CommandNewSession Command = "newsession"
	CommandPing       Command = "ping"
)

// ParseCommand maps a command name to a Command. "start" is accepted as help.
func ParseCommand(name string) (Command, bool) {
	switch c := Command(strings.ToLower(strings.TrimSpace(name))); c {
	case CommandHelp, CommandSession, CommandNewSession, CommandPing:
		return c, true
	case "start":
		return CommandHelp, true
	default:
		return "", false
	}
}

// Commands lists every supported command in help order
func Commands() []Command {
	return []Command{CommandHelp, CommandSession, CommandNewSession, CommandPing}
}

// Result is the tagged outcome of a turn or command
type Result struct {
	TurnID    string
	Command   Command
	Outcome   Outcome
	Text      string
	SessionID string
	Failure   Failure
	Err       error
	Latency   time.Duration
}

// OK reports a successful outcome
func (r Result) OK() bool {
	return r.Outcome == OutcomeSuccess
}

// Sessions is the session directory as seen by the service
type Sessions interface {
	ResolveOrCreate(ctx context.Context, participant string) (session.Resolution, error)
	ForceNew(ctx context.Context, participant string) (string, error)
}

// Prober checks backend liveness
type Prober interface {
	Health(ctx context.Context) (*backend.Response, error)
}

// Observer receives one observation per finished turn or command
type Observer interface {
	ObserveTurn(kind, outcome string, duration time.Duration)
}

// ServiceOptions configures a Service
type ServiceOptions struct {
	CommandPrefix string
	Observer      Observer
}

// TurnOption customizes a single HandleMessage call
type TurnOption func(*turnConfig)

type turnConfig struct {
	onState func(*Turn)
}

// WithStateHook calls fn after every state change of the turn
func WithStateHook(fn func(*Turn)) TurnOption {
	return func(c *turnConfig) {
		c.onState = fn
	}
}

// Service drives turns and commands for the event adapter
type Service struct {
	sessions Sessions
	relay    *Relay
	prober   Prober
	opts     ServiceOptions
	logger   zerolog.Logger
}

// NewService wires a service
func NewService(sessions Sessions, relay *Relay, prober Prober, opts ServiceOptions, logger zerolog.Logger) *Service {
	if opts.CommandPrefix == "" {
		opts.CommandPrefix = "/"
	}
	return &Service{
		sessions: sessions,
		relay:    relay,
		prober:   prober,
		opts:     opts,
		logger:   logger.With().Str("component", "relay_service").Logger(),
	}
}

// HandleMessage runs one turn: resolve, submit, render
func (s *Service) HandleMessage(ctx context.Context, participant, text string, opts ...TurnOption) Result {
	cfg := turnConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	turn := NewTurn(participant)
	logger := s.logger.With().Str("turn_id", turn.ID).Str("participant", participant).Logger()

	advance := func(next State) {
		if err := turn.Advance(next); err != nil {
			logger.Error().Err(err).Msg("Turn transition rejected")
			return
		}
		if cfg.onState != nil {
			cfg.onState(turn)
		}
	}
	fail := func(outcome Outcome, err error) Result {
		if ferr := turn.Advance(StateFailed); ferr != nil {
			logger.Error().Err(ferr).Msg("Turn transition rejected")
		} else if cfg.onState != nil {
			cfg.onState(turn)
		}
		res := Result{
			TurnID:    turn.ID,
			Outcome:   outcome,
			SessionID: turn.SessionID,
			Failure:   classify(err),
			Err:       err,
			Latency:   turn.Elapsed(),
		}
		logger.Warn().
			Err(err).
			Str("outcome", string(outcome)).
			Str("failure", string(res.Failure)).
			Dur("latency", res.Latency).
			Msg("Turn failed")
		s.observe("message", res)
		return res
	}

	advance(StateResolving)
	resolution, err := s.sessions.ResolveOrCreate(ctx, participant)
	if err != nil {
		return fail(OutcomeSessionError, err)
	}
	turn.SessionID = resolution.SessionID

	advance(StateSubmitting)
	reply, err := s.relay.Submit(ctx, turn.SessionID, text)
	if err != nil {
		return fail(OutcomeResponseError, err)
	}

	advance(StateRendering)
	display := s.relay.Render(reply)

	advance(StateDone)
	res := Result{
		TurnID:    turn.ID,
		Outcome:   OutcomeSuccess,
		Text:      display,
		SessionID: turn.SessionID,
		Latency:   turn.Elapsed(),
	}

	logger.Info().
		Str("session_id", res.SessionID).
		Str("session_source", string(resolution.Source)).
		Int("chars", len([]rune(display))).
		Dur("latency", res.Latency).
		Msg("Turn completed")
	s.observe("message", res)

	return res
}

// HandleCommand executes an explicit command
func (s *Service) HandleCommand(ctx context.Context, participant string, cmd Command) Result {
	start := time.Now()
	res := Result{TurnID: uuid.NewString(), Command: cmd}

	switch cmd {
	case CommandHelp:
		res.Outcome = OutcomeSuccess
		res.Text = s.HelpText()

	case CommandSession:
		resolution, err := s.sessions.ResolveOrCreate(ctx, participant)
		if err != nil {
			res = s.failed(res, OutcomeSessionError, err)
			break
		}
		res.Outcome = OutcomeSuccess
		res.SessionID = resolution.SessionID
		res.Text = "Your current session ID: " + resolution.SessionID

	case CommandNewSession:
		id, err := s.sessions.ForceNew(ctx, participant)
		if err != nil {
			res = s.failed(res, OutcomeSessionError, err)
			break
		}
		res.Outcome = OutcomeSuccess
		res.SessionID = id
		res.Text = "Created new session: " + id

	case CommandPing:
		probeStart := time.Now()
		_, err := s.prober.Health(ctx)
		res.Latency = time.Since(probeStart)
		if err != nil {
			res = s.failed(res, OutcomeResponseError, err)
			break
		}
		res.Outcome = OutcomeSuccess
		res.Text = fmt.Sprintf("Pong! Backend latency: %dms", res.Latency.Milliseconds())

	default:
		res = s.failed(res, OutcomeResponseError, fmt.Errorf("unknown command %q", cmd))
	}

	if cmd != CommandPing {
		res.Latency = time.Since(start)
	}

	s.logger.Debug().
		Str("turn_id", res.TurnID).
		Str("participant", participant).
		Str("command", string(cmd)).
		Str("outcome", string(res.Outcome)).
		Msg("Command handled")
	s.observe(string(cmd), res)

	return res
}

// HelpText describes the available commands
func (s *Service) HelpText() string {
	p := s.opts.CommandPrefix
	var b strings.Builder
	b.WriteString("Send any message to chat with the assistant.\n\n")
	b.WriteString("Commands:\n")
	fmt.Fprintf(&b, "%shelp - show this help\n", p)
	fmt.Fprintf(&b, "%ssession - show your current session ID\n", p)
	fmt.Fprintf(&b, "%snewsession - start a fresh conversation\n", p)
	fmt.Fprintf(&b, "%sping - check backend latency", p)
	return b.String()
}

func (s *Service) failed(res Result, outcome Outcome, err error) Result {
	res.Outcome = outcome
	res.Failure = classify(err)
	res.Err = err
	s.logger.Warn().
		Err(err).
		Str("turn_id", res.TurnID).
		Str("command", string(res.Command)).
		Str("outcome", string(outcome)).
		Msg("Command failed")
	return res
}

func (s *Service) observe(kind string, res Result) {
	if s.opts.Observer != nil {
		s.opts.Observer.ObserveTurn(kind, string(res.Outcome), res.Latency)
	}
}

func classify(err error) Failure {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, backend.ErrUnavailable):
		return FailureTransport
	default:
		return FailureMalformed
	}
}
