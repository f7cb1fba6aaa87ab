package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrQueueClosed is returned by Enqueue after Close.
var ErrQueueClosed = errors.New("task queue closed")

// MemoryQueue is an in-process, unbounded FIFO drained by a fixed worker pool.
// Enqueue never blocks; throttled tasks wait in the queue instead of failing.
type MemoryQueue struct {
	proc    *Processor
	workers int
	log     *zap.Logger

	mu      sync.Mutex
	pending []ReminderNotification
	timers  map[*time.Timer]ReminderNotification
	closed  bool
	signal  chan struct{}

	inflight sync.WaitGroup
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

// NewMemoryQueue creates a queue with the given number of workers.
func NewMemoryQueue(proc *Processor, workers int, log *zap.Logger) *MemoryQueue {
	if workers <= 0 {
		workers = 1
	}
	return &MemoryQueue{
		proc:    proc,
		workers: workers,
		log:     log,
		timers:  map[*time.Timer]ReminderNotification{},
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue appends task to the queue.
func (q *MemoryQueue) Enqueue(_ context.Context, task ReminderNotification) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.inflight.Add(1)
	q.pending = append(q.pending, task)
	q.notify()
	return nil
}

// notify wakes one idle worker; callers hold mu.
func (q *MemoryQueue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *MemoryQueue) tryDequeue() (ReminderNotification, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return ReminderNotification{}, false
	}
	task := q.pending[0]
	q.pending[0] = ReminderNotification{}
	q.pending = q.pending[1:]
	if len(q.pending) > 0 {
		q.notify()
	}
	return task, true
}

// Start launches the workers. They stop when ctx is cancelled or Close is called.
func (q *MemoryQueue) Start(ctx context.Context) {
	ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
}

func (q *MemoryQueue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		task, ok := q.tryDequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-q.signal:
				continue
			}
		}
		q.handle(ctx, task)
	}
}

func (q *MemoryQueue) handle(ctx context.Context, task ReminderNotification) {
	outcome, next, err := q.proc.Process(ctx, task)
	if outcome != Retry {
		q.inflight.Done()
		return
	}
	if ctx.Err() != nil {
		q.abandon(next, err)
		return
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.abandon(next, err)
		return
	}
	var t *time.Timer
	t = time.AfterFunc(next.Backoff, func() {
		q.mu.Lock()
		delete(q.timers, t)
		if q.closed {
			q.mu.Unlock()
			q.abandon(next, ErrQueueClosed)
			return
		}
		q.pending = append(q.pending, next)
		q.notify()
		q.mu.Unlock()
	})
	q.timers[t] = next
	q.mu.Unlock()
}

// abandon dead-letters a task the queue will not deliver and settles it.
func (q *MemoryQueue) abandon(task ReminderNotification, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.proc.Abandon(ctx, task, cause)
	q.inflight.Done()
}

// Wait blocks until every enqueued task has been delivered or dead-lettered,
// including scheduled retries, or until ctx is done.
func (q *MemoryQueue) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks, cancels pending retries and stops the workers.
// Tasks that were still queued or waiting for a retry are dead-lettered.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	dropped := q.pending
	q.pending = nil
	for t, task := range q.timers {
		if t.Stop() {
			dropped = append(dropped, task)
		}
		delete(q.timers, t)
	}
	q.mu.Unlock()

	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()
	if len(dropped) > 0 {
		q.log.Warn("reminder queue closed with undelivered tasks", zap.Int("dead_lettered", len(dropped)))
	}
	for _, task := range dropped {
		q.abandon(task, ErrQueueClosed)
	}
}
