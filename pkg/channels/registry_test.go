package channels

import (
	"context"
	"testing"

	"github.com/harun/relay/pkg/relay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testChannel struct {
	name       string
	startCalls int
	stopCalls  int
}

func (c *testChannel) Name() string {
	return c.name
}

func (c *testChannel) Start(_ context.Context, dispatch DispatchFunc) error {
	if dispatch == nil {
		return assert.AnError
	}
	c.startCalls++
	return nil
}

func (c *testChannel) Stop(_ context.Context) error {
	c.stopCalls++
	return nil
}

func echoDispatch(_ context.Context, msg InboundMessage) (relay.Result, error) {
	return relay.Result{
		Outcome: relay.OutcomeSuccess,
		Command: msg.Command,
		Text:    msg.Channel + ":" + msg.Participant + ":" + msg.Text,
	}, nil
}

func TestRegistry_RegisterStartDispatchStop(t *testing.T) {
	dispatched := 0
	reg := NewRegistry(func(ctx context.Context, msg InboundMessage) (relay.Result, error) {
		dispatched++
		return echoDispatch(ctx, msg)
	})

	ch := &testChannel{name: "telegram"}
	require.NoError(t, reg.Register(ch))
	assert.True(t, reg.IsRegistered("telegram"))
	assert.Equal(t, []string{"telegram"}, reg.Names())

	require.NoError(t, reg.StartAll(context.Background()))
	require.NoError(t, reg.StartAll(context.Background()))
	assert.Equal(t, 1, ch.startCalls)

	result, err := reg.Dispatch(context.Background(), InboundMessage{
		Channel:     "telegram",
		Participant: "42",
		Text:        "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "telegram:42:hello", result.Text)
	assert.Equal(t, 1, dispatched)

	require.NoError(t, reg.StopAll(context.Background()))
	assert.Equal(t, 1, ch.stopCalls)
}

func TestRegistry_DispatchValidation(t *testing.T) {
	reg := NewRegistry(echoDispatch)
	require.NoError(t, reg.Register(&testChannel{name: "telegram"}))

	_, err := reg.Dispatch(context.Background(), InboundMessage{Channel: "discord", Participant: "1", Text: "ping"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")

	_, err = reg.Dispatch(context.Background(), InboundMessage{Channel: "telegram", Text: "ping"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "participant")

	_, err = NewRegistry(nil).Dispatch(context.Background(), InboundMessage{Channel: "telegram"})
	assert.Error(t, err)
}

func TestRegistry_RejectsDuplicateChannel(t *testing.T) {
	reg := NewRegistry(echoDispatch)

	require.NoError(t, reg.Register(&testChannel{name: "telegram"}))
	err := reg.Register(&testChannel{name: " telegram "})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
	assert.Error(t, reg.Register(nil))
}

func TestDirectChannel_Send(t *testing.T) {
	ch := NewDirectChannel("direct")

	_, err := ch.Send(context.Background(), "42", "hi")
	require.Error(t, err, "not started")

	reg := NewRegistry(echoDispatch)
	require.NoError(t, reg.Register(ch))
	require.NoError(t, reg.StartAll(context.Background()))

	res, err := ch.Send(context.Background(), "42", "hi")
	require.NoError(t, err)
	assert.Equal(t, "direct:42:hi", res.Text)
	assert.Empty(t, res.Command)

	res, err = ch.Send(context.Background(), "42", "/newsession")
	require.NoError(t, err)
	assert.Equal(t, relay.CommandNewSession, res.Command)

	res, err = ch.Send(context.Background(), "42", "/ping now")
	require.NoError(t, err)
	assert.Equal(t, relay.CommandPing, res.Command)

	for _, text := range []string{"/unknown thing", "/", "  / hi"} {
		_, err = ch.Send(context.Background(), "42", text)
		assert.ErrorIs(t, err, ErrUnknownCommand, text)
	}

	require.NoError(t, reg.StopAll(context.Background()))
	_, err = ch.Send(context.Background(), "42", "hi")
	assert.Error(t, err)
}
