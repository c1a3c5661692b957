// Package taskqueue provides lane-based task execution with FIFO ordering per lane.
//
// Invariants:
// - Tasks in the same lane execute in FIFO order.
// - Tasks in different lanes may execute concurrently.
// - Resetting a lane rejects queued tasks without touching the running one.
//
// Usage:
//
//	queue := taskqueue.New()
//	defer queue.Close()
//	result, err := queue.Enqueue(taskqueue.UserLane("alice"), func(ctx context.Context) (interface{}, error) {
//		return "ok", nil
//	})
package taskqueue
