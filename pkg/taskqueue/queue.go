package taskqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hearthd/hearth/internal/observability"
	"github.com/rs/zerolog/log"
)

// Task represents a blocking operation to be executed off the caller's path
type Task func(ctx context.Context) (interface{}, error)

// taskRecord tracks a task's execution state
type taskRecord struct {
	id         string
	task       Task
	ctx        context.Context
	generation int
	enqueuedAt time.Time
	result     chan taskResult
}

type taskResult struct {
	value interface{}
	err   error
}

// laneState manages execution state for a single lane
type laneState struct {
	generation  int
	concurrency int
	queue       []*taskRecord
	running     int
	mu          sync.Mutex
}

// Queue provides lane-based task serialization with bounded concurrency.
// Blocking work (disk I/O, backend session construction, memory-backed
// invocations) is enqueued here so callers on the request path suspend
// instead of stalling each other.
type Queue struct {
	lanes     map[string]*laneState
	taskIDSeq int
	mu        sync.RWMutex
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

// UserLane returns the lane name that serializes work for one user.
func UserLane(userID string) string {
	return "user-" + userID
}

// New creates a new Queue
func New() *Queue {
	observability.EnsureRegistered()

	ctx, cancel := context.WithCancel(context.Background())

	q := &Queue{
		lanes:  make(map[string]*laneState),
		ctx:    ctx,
		cancel: cancel,
	}

	q.initLane("main", 1)

	return q
}

// initLane initializes a lane with specified concurrency
func (q *Queue) initLane(lane string, concurrency int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.lanes[lane]; !exists {
		q.lanes[lane] = &laneState{
			concurrency: concurrency,
			queue:       make([]*taskRecord, 0),
		}
		log.Debug().Str("lane", lane).Int("concurrency", concurrency).Msg("Lane initialized")
	}
}

// Enqueue adds a task to the specified lane and blocks until it completes
func (q *Queue) Enqueue(lane string, task Task) (interface{}, error) {
	return q.EnqueueWithContext(context.Background(), lane, task)
}

// EnqueueWithContext adds a task to the specified lane and propagates the
// caller's context into the task.
func (q *Queue) EnqueueWithContext(ctx context.Context, lane string, task Task) (interface{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	q.ensureLane(lane)

	q.mu.Lock()
	q.taskIDSeq++
	taskID := fmt.Sprintf("%s-%d", lane, q.taskIDSeq)
	ls := q.lanes[lane]
	q.mu.Unlock()

	record := &taskRecord{
		id:         taskID,
		task:       task,
		ctx:        ctx,
		generation: ls.generation,
		enqueuedAt: time.Now(),
		result:     make(chan taskResult, 1),
	}

	ls.mu.Lock()
	ls.queue = append(ls.queue, record)
	queueSize := len(ls.queue)
	ls.mu.Unlock()

	log.Debug().
		Str("lane", lane).
		Str("taskId", taskID).
		Int("queueSize", queueSize).
		Msg("Task enqueued")

	observability.RecordQueueEnqueue(lane, queueSize)

	go q.processLane(lane)

	result := <-record.result
	return result.value, result.err
}

// ensureLane creates a lane if it doesn't exist
func (q *Queue) ensureLane(lane string) {
	q.mu.RLock()
	_, exists := q.lanes[lane]
	q.mu.RUnlock()

	if !exists {
		q.initLane(lane, 1)
	}
}

// processLane processes queued tasks for a lane
func (q *Queue) processLane(lane string) {
	q.mu.RLock()
	ls := q.lanes[lane]
	q.mu.RUnlock()

	ls.mu.Lock()
	defer ls.mu.Unlock()

	for ls.running < ls.concurrency && len(ls.queue) > 0 {
		record := ls.queue[0]
		ls.queue = ls.queue[1:]

		// Reject tasks from a previous generation
		if record.generation != ls.generation {
			record.result <- taskResult{
				err: fmt.Errorf("task cancelled due to lane reset"),
			}
			continue
		}

		ls.running++

		q.wg.Add(1)
		go q.executeTask(lane, record)
	}
}

// executeTask executes a single task
func (q *Queue) executeTask(lane string, record *taskRecord) {
	defer q.wg.Done()

	taskCtx := record.ctx
	if taskCtx == nil {
		taskCtx = context.Background()
	}

	runCtx, cancel := context.WithCancel(taskCtx)
	stopCancel := context.AfterFunc(q.ctx, cancel)
	defer func() {
		stopCancel()
		cancel()
	}()

	startTime := time.Now()

	value, err := record.task(runCtx)

	duration := time.Since(startTime)

	q.mu.RLock()
	ls := q.lanes[lane]
	q.mu.RUnlock()

	ls.mu.Lock()
	ls.running--
	queueSize := len(ls.queue)
	ls.mu.Unlock()

	record.result <- taskResult{value: value, err: err}
	close(record.result)

	if err != nil {
		log.Error().
			Str("lane", lane).
			Str("taskId", record.id).
			Dur("duration", duration).
			Err(err).
			Msg("Task failed")
	} else {
		log.Debug().
			Str("lane", lane).
			Str("taskId", record.id).
			Dur("duration", duration).
			Msg("Task completed")
	}

	observability.RecordQueueCompletion(lane, duration, err == nil, queueSize)

	go q.processLane(lane)
}

// GetQueueSize returns the number of queued tasks for a lane
func (q *Queue) GetQueueSize(lane string) int {
	q.mu.RLock()
	ls, exists := q.lanes[lane]
	q.mu.RUnlock()

	if !exists {
		return 0
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	return len(ls.queue)
}

// GetRunningCount returns the number of currently executing tasks for a lane
func (q *Queue) GetRunningCount(lane string) int {
	q.mu.RLock()
	ls, exists := q.lanes[lane]
	q.mu.RUnlock()

	if !exists {
		return 0
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.running
}

// SetConcurrency updates the concurrency limit for a lane
func (q *Queue) SetConcurrency(lane string, concurrency int) {
	q.ensureLane(lane)

	q.mu.RLock()
	ls := q.lanes[lane]
	q.mu.RUnlock()

	ls.mu.Lock()
	oldMax := ls.concurrency
	ls.concurrency = concurrency
	ls.mu.Unlock()

	if concurrency > oldMax {
		go q.processLane(lane)
	}
}

// ResetLane increments the generation counter for a lane and rejects all
// queued tasks.
func (q *Queue) ResetLane(lane string) {
	q.mu.RLock()
	ls, exists := q.lanes[lane]
	q.mu.RUnlock()

	if !exists {
		return
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	ls.generation++

	for _, record := range ls.queue {
		record.result <- taskResult{
			err: fmt.Errorf("lane reset"),
		}
		close(record.result)
	}

	ls.queue = make([]*taskRecord, 0)

	log.Info().Str("lane", lane).Int("generation", ls.generation).Msg("Lane reset")
	observability.SetQueueSize(lane, 0)
}

// Close gracefully shuts down the queue
func (q *Queue) Close() error {
	q.cancel()
	q.wg.Wait()
	return nil
}
