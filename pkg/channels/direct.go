package channels

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/harun/relay/pkg/relay"
)

// DirectChannel feeds messages into the relay without a chat platform (CLI ask, tests).
type DirectChannel struct {
	name string

	mu       sync.RWMutex
	dispatch DispatchFunc
}

// NewDirectChannel creates a direct channel by name.
func NewDirectChannel(name string) *DirectChannel {
	return &DirectChannel{name: strings.TrimSpace(name)}
}

// Name returns channel name.
func (c *DirectChannel) Name() string {
	return c.name
}

// Start stores the dispatcher.
func (c *DirectChannel) Start(_ context.Context, dispatch DispatchFunc) error {
	if c.name == "" {
		return fmt.Errorf("channel name is required")
	}
	if dispatch == nil {
		return fmt.Errorf("dispatch function is required")
	}

	c.mu.Lock()
	c.dispatch = dispatch
	c.mu.Unlock()
	return nil
}

// Stop detaches the dispatcher.
func (c *DirectChannel) Stop(_ context.Context) error {
	c.mu.Lock()
	c.dispatch = nil
	c.mu.Unlock()
	return nil
}

// ErrUnknownCommand is returned by Send for "/" text that names no command
var ErrUnknownCommand = errors.New("unknown command")

// Send relays text as participant and returns the turn result.
// Text starting with "/" is a command and is never relayed as a message.
func (c *DirectChannel) Send(ctx context.Context, participant, text string) (relay.Result, error) {
	c.mu.RLock()
	dispatch := c.dispatch
	c.mu.RUnlock()

	if dispatch == nil {
		return relay.Result{}, fmt.Errorf("channel %q is not started", c.name)
	}

	msg := InboundMessage{Channel: c.name, Participant: participant, Text: text}
	if rest, ok := strings.CutPrefix(strings.TrimSpace(text), "/"); ok {
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return relay.Result{}, fmt.Errorf("%w: %q", ErrUnknownCommand, text)
		}
		cmd, known := relay.ParseCommand(fields[0])
		if !known {
			return relay.Result{}, fmt.Errorf("%w: /%s", ErrUnknownCommand, fields[0])
		}
		msg.Command = cmd
		msg.Text = ""
	}

	return dispatch(ctx, msg)
}
