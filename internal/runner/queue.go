// Package runner executes admitted extraction jobs on a bounded worker pool
// fed by a bounded in-memory queue.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"audiovault/internal/media"
)

// ErrQueueFull is returned when admission would exceed the queue bound.
var ErrQueueFull = errors.New("job queue full")

// Queue is a bounded in-memory job queue with context-aware dequeue.
type Queue struct {
	ch      chan media.Job
	closeMu sync.Mutex
	closed  bool
}

// NewQueue constructs a queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch: make(chan media.Job, capacity),
	}
}

// Enqueue pushes a job without blocking. A full queue fails admission with
// ErrQueueFull rather than stalling the request path.
func (q *Queue) Enqueue(job media.Job) error {
	select {
	case q.ch <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Dequeue pops the next job, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (media.Job, error) {
	select {
	case <-ctx.Done():
		return media.Job{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case job, ok := <-q.ch:
		if !ok {
			return media.Job{}, errors.New("queue closed")
		}
		return job, nil
	}
}

// Close closes the underlying channel for shutdown.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
