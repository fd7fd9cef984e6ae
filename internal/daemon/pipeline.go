package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/harun/relay/internal/logger"
	"github.com/harun/relay/pkg/channels"
	"github.com/harun/relay/pkg/commandqueue"
	"github.com/harun/relay/pkg/relay"
	"github.com/rs/zerolog"
)

// PipelineOptions configures a Pipeline
type PipelineOptions struct {
	// DirectChannel names the in-process channel served by Ask
	DirectChannel string
	WarnAfter     time.Duration
	Observer      commandqueue.Observer
}

// Pipeline is the ingress path shared by the daemon and one-shot commands:
// channels hand messages to the router, which runs them on per-participant
// lanes in front of the relay service.
type Pipeline struct {
	queue    *commandqueue.CommandQueue
	registry *channels.Registry
	direct   *channels.DirectChannel
	logger   zerolog.Logger
}

// NewPipeline wires the lane queue, router and channel registry for service
func NewPipeline(service *relay.Service, opts PipelineOptions, zl zerolog.Logger) (*Pipeline, error) {
	if opts.DirectChannel == "" {
		opts.DirectChannel = "direct"
	}

	queue := commandqueue.New(commandqueue.Options{
		Concurrency: 1,
		WarnAfter:   opts.WarnAfter,
		Observer:    opts.Observer,
		Logger:      zl,
	})
	router := NewRouter(queue, channels.ServiceDispatcher(service), zl)

	p := &Pipeline{
		queue:    queue,
		registry: channels.NewRegistry(router.RouteMessageAndWait),
		direct:   channels.NewDirectChannel(opts.DirectChannel),
		logger:   logger.Component(zl, "pipeline"),
	}
	if err := p.registry.Register(p.direct); err != nil {
		_ = queue.Close()
		return nil, err
	}

	return p, nil
}

// Register adds an ingress channel; it must be called before Start
func (p *Pipeline) Register(ch channels.Channel) error {
	return p.registry.Register(ch)
}

// Start starts every registered channel
func (p *Pipeline) Start(ctx context.Context) error {
	return p.registry.StartAll(ctx)
}

// Stop detaches every channel. Turns already routed keep running.
func (p *Pipeline) Stop(ctx context.Context) error {
	return p.registry.StopAll(ctx)
}

// Close waits for routed turns to finish until ctx expires, or for the
// shutdown timeout when ctx has no deadline, then closes the lane queue.
func (p *Pipeline) Close(ctx context.Context) error {
	timeout := shutdownTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	if !p.queue.WaitForActive(timeout) {
		p.logger.Warn().Int("pending", p.queue.Pending()).Msg("Closing lanes with turns still running")
	}

	if err := p.queue.Close(); err != nil {
		return fmt.Errorf("failed to close command queue: %w", err)
	}
	return nil
}

// Ask runs one message or command through the direct channel on behalf of participant
func (p *Pipeline) Ask(ctx context.Context, participant, text string) (relay.Result, error) {
	return p.direct.Send(ctx, participant, text)
}

// Channels returns the registered channel names
func (p *Pipeline) Channels() []string {
	return p.registry.Names()
}

// Lanes returns the number of participants with queued or running turns
func (p *Pipeline) Lanes() int {
	return p.queue.LaneCount()
}

// Pending returns queued plus running turns
func (p *Pipeline) Pending() int {
	return p.queue.Pending()
}
