package channels

import (
	"context"

	"github.com/harun/relay/pkg/relay"
)

// InboundMessage is the normalized ingress payload from any channel.
// Command is set for explicit commands; Text carries ordinary messages.
type InboundMessage struct {
	Channel     string
	Participant string
	Text        string
	Command     relay.Command
	Metadata    map[string]interface{}
	TurnOptions []relay.TurnOption
}

// IsCommand reports whether the message is an explicit command
func (m InboundMessage) IsCommand() bool {
	return m.Command != ""
}

// DispatchFunc routes an inbound channel message into the relay.
type DispatchFunc func(ctx context.Context, msg InboundMessage) (relay.Result, error)

// Channel is a channel runtime abstraction (telegram, direct, ...).
type Channel interface {
	Name() string
	Start(ctx context.Context, dispatch DispatchFunc) error
	Stop(ctx context.Context) error
}

// ServiceDispatcher returns a DispatchFunc backed by a relay service
func ServiceDispatcher(svc *relay.Service) DispatchFunc {
	return func(ctx context.Context, msg InboundMessage) (relay.Result, error) {
		if msg.IsCommand() {
			return svc.HandleCommand(ctx, msg.Participant, msg.Command), nil
		}
		return svc.HandleMessage(ctx, msg.Participant, msg.Text, msg.TurnOptions...), nil
	}
}
