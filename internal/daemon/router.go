package daemon

import (
	"context"
	"fmt"

	"github.com/harun/relay/internal/logger"
	"github.com/harun/relay/pkg/channels"
	"github.com/harun/relay/pkg/commandqueue"
	"github.com/harun/relay/pkg/relay"
	"github.com/rs/zerolog"
)

// Router serializes inbound messages per participant before they reach the relay
type Router struct {
	queue    *commandqueue.CommandQueue
	dispatch channels.DispatchFunc
	logger   zerolog.Logger
}

// NewRouter creates a router that runs dispatch on per-participant lanes
func NewRouter(queue *commandqueue.CommandQueue, dispatch channels.DispatchFunc, zl zerolog.Logger) *Router {
	return &Router{
		queue:    queue,
		dispatch: dispatch,
		logger:   logger.Component(zl, "router"),
	}
}

// LaneFor returns the queue lane of a participant
func LaneFor(participant string) string {
	return "participant:" + participant
}

// RouteMessageAndWait enqueues msg on its participant's lane and waits for the result
func (r *Router) RouteMessageAndWait(ctx context.Context, msg channels.InboundMessage) (relay.Result, error) {
	lane := LaneFor(msg.Participant)

	r.logger.Debug().
		Str("lane", lane).
		Str("channel", msg.Channel).
		Str(logger.FieldParticipant, msg.Participant).
		Bool("command", msg.IsCommand()).
		Msg("Routing message")

	out, err := r.queue.Enqueue(ctx, lane, func(ctx context.Context) (interface{}, error) {
		return r.dispatch(ctx, msg)
	})
	if err != nil {
		return relay.Result{}, fmt.Errorf("failed to route message: %w", err)
	}

	res, ok := out.(relay.Result)
	if !ok {
		return relay.Result{}, fmt.Errorf("unexpected dispatch result %T", out)
	}
	return res, nil
}
