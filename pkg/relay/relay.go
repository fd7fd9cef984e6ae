package relay

import (
	"context"

	"github.com/harun/relay/pkg/backend"
	"github.com/rs/zerolog"
)

// Sender submits a message to a backend session
type Sender interface {
	SendMessage(ctx context.Context, sessionID, text string) (*backend.Reply, error)
}

// Options configures a Relay
type Options struct {
	MaxDisplayChars int
}

// Relay submits text to a session and renders the reply
type Relay struct {
	sender Sender
	limit  int
	logger zerolog.Logger
}

// New creates a relay
func New(sender Sender, opts Options, logger zerolog.Logger) *Relay {
	limit := opts.MaxDisplayChars
	if limit <= 0 {
		limit = DefaultMaxDisplayChars
	}

	return &Relay{
		sender: sender,
		limit:  limit,
		logger: logger.With().Str("component", "relay").Logger(),
	}
}

// Submit sends text and returns the structured reply.
// Errors wrap backend.ErrUnavailable or backend.ErrUnexpectedResponse.
func (r *Relay) Submit(ctx context.Context, sessionID, text string) (*backend.Reply, error) {
	reply, err := r.sender.SendMessage(ctx, sessionID, text)
	if err != nil {
		r.logger.Warn().
			Err(err).
			Str("session_id", sessionID).
			Str("failure", string(classify(err))).
			Msg("Message submission failed")
		return nil, err
	}
	return reply, nil
}

// Render bounds a reply for display
func (r *Relay) Render(reply *backend.Reply) string {
	if reply == nil {
		return ""
	}
	return RenderReply(*reply, r.limit)
}
