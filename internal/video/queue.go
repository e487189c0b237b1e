package video

import (
	"errors"
	"sync"
)

// ErrAborted is returned by blocking pipeline waits after Abort.
var ErrAborted = errors.New("video: aborted")

// FrameQueue is a bounded FIFO between two pipeline stages. Put blocks
// while the queue is full and Get blocks while it is empty; both return
// ErrAborted once the queue is aborted.
type FrameQueue[T any] struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []T
	cap     int
	aborted bool
}

// NewFrameQueue returns a queue holding at most capacity items.
func NewFrameQueue[T any](capacity int) *FrameQueue[T] {
	if capacity < 1 {
		capacity = 1
	}
	q := &FrameQueue[T]{cap: capacity}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Put hands v to the queue, waiting for space.
func (q *FrameQueue[T]) Put(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) >= q.cap && !q.aborted {
		q.cond.Wait()
	}
	if q.aborted {
		return ErrAborted
	}
	q.items = append(q.items, v)
	q.cond.Broadcast()
	return nil
}

// Get takes the head item, waiting for one to arrive.
func (q *FrameQueue[T]) Get() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.aborted {
		q.cond.Wait()
	}
	var zero T
	if q.aborted {
		return zero, ErrAborted
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	q.cond.Broadcast()
	return v, nil
}

// Drain removes and returns every queued item without blocking.
func (q *FrameQueue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	q.cond.Broadcast()
	return out
}

// Abort releases every waiter.
func (q *FrameQueue[T]) Abort() {
	q.mu.Lock()
	q.aborted = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Len returns the number of queued items.
func (q *FrameQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
