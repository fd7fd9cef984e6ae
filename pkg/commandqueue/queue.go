package commandqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrClosed is returned for tasks enqueued on, or still queued at, a closed queue
var ErrClosed = errors.New("command queue closed")

// Task represents an asynchronous operation to be executed
type Task func(ctx context.Context) (interface{}, error)

// Observer receives queue activity (metrics)
type Observer interface {
	SetQueueDepth(n int)
	ObserveQueueWait(wait time.Duration)
	ObserveQueueTask(duration time.Duration, success bool)
}

// Options configures a CommandQueue
type Options struct {
	// Concurrency is the per-lane limit; defaults to 1
	Concurrency int
	// WarnAfter logs a warning when a task waits longer than this; 0 disables
	WarnAfter time.Duration
	Observer  Observer
	Logger    zerolog.Logger
}

// taskRecord tracks a task's execution state
type taskRecord struct {
	id         string
	task       Task
	ctx        context.Context
	enqueuedAt time.Time
	result     chan taskResult
}

type taskResult struct {
	value interface{}
	err   error
}

// laneState is the execution state for a single lane
type laneState struct {
	queue   []*taskRecord
	running int
}

// CommandQueue provides lane-based task serialization with concurrency control
type CommandQueue struct {
	opts   Options
	logger zerolog.Logger

	mu        sync.Mutex
	lanes     map[string]*laneState
	pending   int
	taskIDSeq int
	closed    bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a CommandQueue
func New(opts Options) *CommandQueue {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &CommandQueue{
		opts:   opts,
		logger: opts.Logger.With().Str("component", "commandqueue").Logger(),
		lanes:  make(map[string]*laneState),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Enqueue adds a task to the lane and waits for its result.
// The task's context is cancelled when ctx is done or the queue closes.
func (cq *CommandQueue) Enqueue(ctx context.Context, lane string, task Task) (interface{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cq.mu.Lock()
	if cq.closed {
		cq.mu.Unlock()
		return nil, ErrClosed
	}

	ls, ok := cq.lanes[lane]
	if !ok {
		ls = &laneState{}
		cq.lanes[lane] = ls
	}

	cq.taskIDSeq++
	record := &taskRecord{
		id:         fmt.Sprintf("%s-%d", lane, cq.taskIDSeq),
		task:       task,
		ctx:        ctx,
		enqueuedAt: time.Now(),
		result:     make(chan taskResult, 1),
	}
	ls.queue = append(ls.queue, record)
	queueSize := len(ls.queue)
	cq.pending++
	pending := cq.pending

	cq.processLane(lane, ls)
	cq.mu.Unlock()

	cq.logger.Debug().
		Str("lane", lane).
		Str("taskId", record.id).
		Int("queueSize", queueSize).
		Msg("Task enqueued")
	cq.setDepth(pending)

	var warn <-chan time.Time
	if cq.opts.WarnAfter > 0 {
		timer := time.NewTimer(cq.opts.WarnAfter)
		defer timer.Stop()
		warn = timer.C
	}

	for {
		select {
		case result := <-record.result:
			return result.value, result.err
		case <-warn:
			warn = nil
			if pos := cq.position(lane, record.id); pos >= 0 {
				cq.logger.Warn().
					Str("lane", lane).
					Str("taskId", record.id).
					Int64("waitMs", time.Since(record.enqueuedAt).Milliseconds()).
					Int("queuePos", pos).
					Msg("Task waiting longer than expected")
			}
		}
	}
}

// processLane starts queued tasks while the lane has capacity. Caller holds cq.mu.
func (cq *CommandQueue) processLane(lane string, ls *laneState) {
	for ls.running < cq.opts.Concurrency && len(ls.queue) > 0 {
		record := ls.queue[0]
		ls.queue = ls.queue[1:]
		ls.running++

		cq.wg.Add(1)
		go cq.executeTask(lane, ls, record)
	}
}

// executeTask executes a single task
func (cq *CommandQueue) executeTask(lane string, ls *laneState, record *taskRecord) {
	defer cq.wg.Done()

	wait := time.Since(record.enqueuedAt)
	if cq.opts.Observer != nil {
		cq.opts.Observer.ObserveQueueWait(wait)
	}

	runCtx, cancel := context.WithCancel(record.ctx)
	stopCancel := context.AfterFunc(cq.ctx, cancel)
	defer func() {
		stopCancel()
		cancel()
	}()

	startTime := time.Now()
	value, err := record.task(runCtx)
	duration := time.Since(startTime)

	cq.mu.Lock()
	ls.running--
	cq.pending--
	pending := cq.pending
	cq.processLane(lane, ls)
	if ls.running == 0 && len(ls.queue) == 0 && cq.lanes[lane] == ls {
		delete(cq.lanes, lane)
	}
	cq.mu.Unlock()

	record.result <- taskResult{value: value, err: err}

	if err != nil {
		cq.logger.Debug().
			Str("lane", lane).
			Str("taskId", record.id).
			Dur("duration", duration).
			Err(err).
			Msg("Task failed")
	} else {
		cq.logger.Debug().
			Str("lane", lane).
			Str("taskId", record.id).
			Dur("wait", wait).
			Dur("duration", duration).
			Msg("Task completed")
	}

	if cq.opts.Observer != nil {
		cq.opts.Observer.ObserveQueueTask(duration, err == nil)
	}
	cq.setDepth(pending)
}

func (cq *CommandQueue) position(lane, id string) int {
	cq.mu.Lock()
	defer cq.mu.Unlock()

	ls, ok := cq.lanes[lane]
	if !ok {
		return -1
	}
	for i, r := range ls.queue {
		if r.id == id {
			return i
		}
	}
	return -1
}

// LaneCount returns the number of lanes with queued or running work
func (cq *CommandQueue) LaneCount() int {
	cq.mu.Lock()
	defer cq.mu.Unlock()
	return len(cq.lanes)
}

// Pending returns queued plus running tasks across all lanes
func (cq *CommandQueue) Pending() int {
	cq.mu.Lock()
	defer cq.mu.Unlock()
	return cq.pending
}

// WaitForActive waits for all tasks to finish, up to timeout
func (cq *CommandQueue) WaitForActive(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if cq.Pending() == 0 {
			return true
		}
		if time.Now().After(deadline) {
			cq.logger.Warn().Dur("timeout", timeout).Int("pending", cq.Pending()).Msg("Timeout waiting for active tasks")
			return false
		}
		<-ticker.C
	}
}

// Close rejects queued tasks, cancels running ones and waits for them to return
func (cq *CommandQueue) Close() error {
	cq.mu.Lock()
	if cq.closed {
		cq.mu.Unlock()
		return nil
	}
	cq.closed = true

	var dropped []*taskRecord
	for lane, ls := range cq.lanes {
		dropped = append(dropped, ls.queue...)
		cq.pending -= len(ls.queue)
		ls.queue = nil
		if ls.running == 0 {
			delete(cq.lanes, lane)
		}
	}
	cq.mu.Unlock()

	for _, record := range dropped {
		record.result <- taskResult{err: ErrClosed}
	}

	cq.cancel()
	cq.wg.Wait()
	return nil
}

func (cq *CommandQueue) setDepth(n int) {
	if cq.opts.Observer != nil {
		cq.opts.Observer.SetQueueDepth(n)
	}
}
