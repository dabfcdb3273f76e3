// Package queue implements the concurrency gate every network call of the
// quiz client passes through: a fixed-capacity admission queue with strict
// FIFO dispatch order among waiters.
package queue

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for queue admission.
var (
	quizQueueActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quiz_queue_active_tasks",
		Help: "Tasks currently running under the concurrency gate",
	})

	quizQueueWaiting = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quiz_queue_waiting_tasks",
		Help: "Tasks waiting for a free slot",
	})

	quizQueueDispatchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quiz_queue_dispatched_total",
		Help: "Total tasks dispatched by the queue",
	})
)

// DefaultLimit is the concurrency cap used when none is configured.
const DefaultLimit = 2

// Queue limits the number of concurrently running tasks. Pending tasks are
// dispatched strictly in submission order; a freed slot is handed directly
// to the oldest waiter so a late submission can never overtake an earlier
// one.
type Queue struct {
	mu      sync.Mutex
	limit   int
	active  int
	waiters []chan struct{}
}

// New creates a queue with the given concurrency limit. Limits below 1
// fall back to DefaultLimit.
func New(limit int) *Queue {
	if limit < 1 {
		limit = DefaultLimit
	}
	return &Queue{limit: limit}
}

// Limit returns the configured concurrency cap.
func (q *Queue) Limit() int {
	return q.limit
}

// Active returns the number of tasks currently running.
func (q *Queue) Active() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

// Waiting returns the number of tasks waiting for dispatch.
func (q *Queue) Waiting() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiters)
}

// Do runs fn under the concurrency gate, blocking until the task has been
// dispatched and settled. If ctx is cancelled before dispatch, fn never
// runs and ctx.Err() is returned. Once dispatched a task runs to
// completion; there is no cancellation of active tasks.
func (q *Queue) Do(ctx context.Context, fn func() error) error {
	if err := q.acquire(ctx); err != nil {
		return err
	}
	defer q.release()

	quizQueueDispatchedTotal.Inc()
	return fn()
}

// acquire claims a slot, queueing behind earlier waiters even when capacity
// is free so dispatch order stays FIFO.
func (q *Queue) acquire(ctx context.Context) error {
	q.mu.Lock()
	if q.active < q.limit && len(q.waiters) == 0 {
		q.active++
		q.mu.Unlock()
		quizQueueActive.Inc()
		return nil
	}

	ready := make(chan struct{})
	q.waiters = append(q.waiters, ready)
	q.mu.Unlock()
	quizQueueWaiting.Inc()

	select {
	case <-ready:
		quizQueueWaiting.Dec()
		quizQueueActive.Inc()
		return nil
	case <-ctx.Done():
		quizQueueWaiting.Dec()
		q.mu.Lock()
		for i, w := range q.waiters {
			if w == ready {
				q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
				q.mu.Unlock()
				return ctx.Err()
			}
		}
		q.mu.Unlock()
		// The slot was already handed to us; pass it on.
		<-ready
		quizQueueActive.Inc()
		q.release()
		return ctx.Err()
	}
}

// release frees a slot, handing it to the oldest waiter if any.
func (q *Queue) release() {
	quizQueueActive.Dec()

	q.mu.Lock()
	if len(q.waiters) > 0 {
		ready := q.waiters[0]
		q.waiters = q.waiters[1:]
		q.mu.Unlock()
		close(ready)
		return
	}
	q.active--
	q.mu.Unlock()
}

// Run executes fn under the gate and returns its typed result. The caller
// receives exactly its own task's outcome.
func Run[T any](ctx context.Context, q *Queue, fn func() (T, error)) (T, error) {
	var result T
	err := q.Do(ctx, func() error {
		var fnErr error
		result, fnErr = fn()
		return fnErr
	})
	return result, err
}
