// Package commandqueue provides lane-based task execution with FIFO ordering per lane.
//
// Invariants:
// - Tasks in the same lane execute in FIFO order, one at a time by default.
// - Tasks in different lanes may execute concurrently.
// - A lane exists only while it has queued or running tasks.
// - Close rejects queued tasks and cancels running ones.
//
// Usage:
//
//	queue := commandqueue.New(commandqueue.Options{Logger: log})
//	defer queue.Close()
//	result, err := queue.Enqueue(ctx, "participant:42", func(ctx context.Context) (interface{}, error) {
//		return "ok", nil
//	})
package commandqueue
