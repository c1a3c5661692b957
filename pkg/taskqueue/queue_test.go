package taskqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQueue_BasicEnqueue(t *testing.T) {
	q := New()
	defer q.Close()

	executed := false
	task := func(ctx context.Context) (interface{}, error) {
		executed = true
		return "result", nil
	}

	result, err := q.Enqueue("test", task)

	assert.NoError(t, err)
	assert.Equal(t, "result", result)
	assert.True(t, executed)
}

func TestQueue_TaskError(t *testing.T) {
	q := New()
	defer q.Close()

	expectedErr := errors.New("task failed")
	task := func(ctx context.Context) (interface{}, error) {
		return nil, expectedErr
	}

	result, err := q.Enqueue("test", task)

	assert.Error(t, err)
	assert.Equal(t, expectedErr, err)
	assert.Nil(t, result)
}

func TestQueue_SerialExecution(t *testing.T) {
	q := New()
	defer q.Close()

	var running, maxRunning int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task := func(ctx context.Context) (interface{}, error) {
				mu.Lock()
				running++
				if running > maxRunning {
					maxRunning = running
				}
				mu.Unlock()

				time.Sleep(10 * time.Millisecond)

				mu.Lock()
				running--
				mu.Unlock()
				return nil, nil
			}
			_, _ = q.Enqueue("serial", task)
		}()
	}

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, maxRunning, "lane should run one task at a time")
}

func TestQueue_ConcurrentLanes(t *testing.T) {
	q := New()
	defer q.Close()

	var count1, count2 int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 3; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			task := func(ctx context.Context) (interface{}, error) {
				mu.Lock()
				count1++
				mu.Unlock()
				return nil, nil
			}
			_, _ = q.Enqueue("lane1", task)
		}()
		go func() {
			defer wg.Done()
			task := func(ctx context.Context) (interface{}, error) {
				mu.Lock()
				count2++
				mu.Unlock()
				return nil, nil
			}
			_, _ = q.Enqueue("lane2", task)
		}()
	}

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, count1)
	assert.Equal(t, 3, count2)
}

func TestQueue_ContextPropagation(t *testing.T) {
	q := New()
	defer q.Close()

	type ctxKey string
	ctx := context.WithValue(context.Background(), ctxKey("caller"), "alice")

	var seen interface{}
	_, err := q.EnqueueWithContext(ctx, "test", func(ctx context.Context) (interface{}, error) {
		seen = ctx.Value(ctxKey("caller"))
		return nil, nil
	})

	assert.NoError(t, err)
	assert.Equal(t, "alice", seen)
}

func TestQueue_UserLane(t *testing.T) {
	assert.Equal(t, "user-alice", UserLane("alice"))
	assert.Equal(t, "user-default_user", UserLane("default_user"))
}

func TestQueue_ResetLane(t *testing.T) {
	q := New()
	defer q.Close()

	release := make(chan struct{})
	var wg sync.WaitGroup

	// First task blocks the lane, the rest pile up in the queue.
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = q.Enqueue("test", func(ctx context.Context) (interface{}, error) {
			<-release
			return nil, nil
		})
	}()

	time.Sleep(20 * time.Millisecond)

	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Enqueue("test", func(ctx context.Context) (interface{}, error) {
				return nil, nil
			})
			errs <- err
		}()
	}

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 3, q.GetQueueSize("test"))

	q.ResetLane("test")
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "lane reset")
	}
	assert.Equal(t, 0, q.GetQueueSize("test"))
}

func TestQueue_ResetUnknownLane(t *testing.T) {
	q := New()
	defer q.Close()

	// No-op rather than a panic.
	q.ResetLane("never-used")
	assert.Equal(t, 0, q.GetQueueSize("never-used"))
}

func TestQueue_SetConcurrency(t *testing.T) {
	q := New()
	defer q.Close()

	q.SetConcurrency("wide", 3)

	var running, maxRunning int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task := func(ctx context.Context) (interface{}, error) {
				mu.Lock()
				running++
				if running > maxRunning {
					maxRunning = running
				}
				mu.Unlock()

				time.Sleep(30 * time.Millisecond)

				mu.Lock()
				running--
				mu.Unlock()
				return nil, nil
			}
			_, _ = q.Enqueue("wide", task)
		}()
	}

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, maxRunning, 3)
	assert.Greater(t, maxRunning, 1, "widened lane should overlap tasks")
}

func TestQueue_GetCounts(t *testing.T) {
	q := New()
	defer q.Close()

	assert.Equal(t, 0, q.GetQueueSize("test"))
	assert.Equal(t, 0, q.GetRunningCount("test"))

	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_, _ = q.Enqueue("test", func(ctx context.Context) (interface{}, error) {
			<-release
			return nil, nil
		})
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, q.GetRunningCount("test"))

	close(release)
	<-done
	assert.Equal(t, 0, q.GetRunningCount("test"))
}

func TestQueue_CloseWaitsForRunning(t *testing.T) {
	q := New()

	finished := false
	done := make(chan struct{})
	go func() {
		_, _ = q.Enqueue("test", func(ctx context.Context) (interface{}, error) {
			time.Sleep(50 * time.Millisecond)
			finished = true
			return nil, nil
		})
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	assert.NoError(t, q.Close())
	<-done
	assert.True(t, finished)
}
