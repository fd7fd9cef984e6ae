package daemon

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harun/relay/pkg/channels"
	"github.com/harun/relay/pkg/commandqueue"
	"github.com/harun/relay/pkg/relay"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLaneFor(t *testing.T) {
	assert.Equal(t, "participant:42", LaneFor("42"))
}

func TestRouter_SerializesParticipant(t *testing.T) {
	queue := commandqueue.New(commandqueue.Options{Concurrency: 1, Logger: zerolog.Nop()})
	defer queue.Close()

	var active, maxActive atomic.Int32
	dispatch := func(ctx context.Context, msg channels.InboundMessage) (relay.Result, error) {
		n := active.Add(1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		active.Add(-1)
		return relay.Result{Outcome: relay.OutcomeSuccess, Text: msg.Text}, nil
	}
	router := NewRouter(queue, dispatch, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := router.RouteMessageAndWait(context.Background(), channels.InboundMessage{Participant: "42", Text: "hi"})
			assert.NoError(t, err)
			assert.Equal(t, "hi", res.Text)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, maxActive.Load())
}

func TestRouter_ParticipantsRunInParallel(t *testing.T) {
	queue := commandqueue.New(commandqueue.Options{Concurrency: 1, Logger: zerolog.Nop()})
	defer queue.Close()

	release := make(chan struct{})
	var started atomic.Int32
	dispatch := func(ctx context.Context, msg channels.InboundMessage) (relay.Result, error) {
		started.Add(1)
		<-release
		return relay.Result{Outcome: relay.OutcomeSuccess}, nil
	}
	router := NewRouter(queue, dispatch, zerolog.Nop())

	var wg sync.WaitGroup
	for _, p := range []string{"1", "2"} {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			_, err := router.RouteMessageAndWait(context.Background(), channels.InboundMessage{Participant: p, Text: "x"})
			assert.NoError(t, err)
		}(p)
	}

	assert.Eventually(t, func() bool { return started.Load() == 2 }, time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()
}

func TestRouter_ClosedQueue(t *testing.T) {
	queue := commandqueue.New(commandqueue.Options{Concurrency: 1, Logger: zerolog.Nop()})
	require.NoError(t, queue.Close())

	router := NewRouter(queue, func(ctx context.Context, msg channels.InboundMessage) (relay.Result, error) {
		return relay.Result{}, nil
	}, zerolog.Nop())

	_, err := router.RouteMessageAndWait(context.Background(), channels.InboundMessage{Participant: "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to route message")
}
