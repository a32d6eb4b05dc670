// Package queue provides an in-process, unbounded FIFO work queue with an
// explicit close-and-drain lifecycle.
package queue

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrClosed is returned by Enqueue after Close, and by Dequeue once a
// closed queue has been drained.
var ErrClosed = errors.New("queue closed")

// Queue is safe for concurrent use. Enqueue never blocks and never drops;
// duplicates are delivered as many times as they were enqueued.
type Queue[T comparable] struct {
	mu     sync.Mutex
	items  []T
	signal chan struct{}
	done   chan struct{}
	closed bool
}

func New[T comparable]() *Queue[T] {
	return &Queue[T]{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (q *Queue[T]) Enqueue(v T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, v)
	q.mu.Unlock()

	q.notify()
	return nil
}

// Dequeue blocks until an item is available, ctx is done, or the queue is
// closed and empty.
func (q *Queue[T]) Dequeue(ctx context.Context) (T, error) {
	var zero T

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			v := q.items[0]
			q.items[0] = zero
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()

			// pass the wakeup on so other consumers see the remaining items
			if remaining > 0 {
				q.notify()
			}
			return v, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return zero, ErrClosed
		}

		select {
		case <-q.signal:
		case <-q.done:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// Remove deletes every queued occurrence of v and reports how many were removed.
func (q *Queue[T]) Remove(v T) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	before := len(q.items)
	q.items = slices.DeleteFunc(q.items, func(item T) bool { return item == v })
	return before - len(q.items)
}

func (q *Queue[T]) Contains(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Contains(q.items, v)
}

// Snapshot returns the queued items in delivery order.
func (q *Queue[T]) Snapshot() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.items)
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops accepting items. Queued items remain available to Dequeue.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

func (q *Queue[T]) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
