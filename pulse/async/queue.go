package async

import (
	"context"
	"sync"
)

// RecvState describes the outcome of a non-blocking receive
type RecvState int

const (
	RecvOK RecvState = iota
	RecvEmpty
	RecvClosed // closed and fully drained
)

// Queue is an unbounded multi-producer FIFO. Push never blocks.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	ready  chan struct{} // signalled (capacity 1) when items arrive or the queue closes
}

// NewQueue creates an empty open queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{ready: make(chan struct{}, 1)}
}

// Push appends v. It returns false, dropping v, if the queue is closed.
func (q *Queue[T]) Push(v T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.signal()
	return true
}

// TryPop removes the oldest item without blocking.
func (q *Queue[T]) TryPop() (T, RecvState) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		if q.closed {
			return zero, RecvClosed
		}
		return zero, RecvEmpty
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return v, RecvOK
}

// Pop blocks until an item is available, the queue is closed and drained, or
// ctx ends. ok is false in the latter two cases.
func (q *Queue[T]) Pop(ctx context.Context) (T, bool) {
	for {
		v, state := q.TryPop()
		switch state {
		case RecvOK:
			return v, true
		case RecvClosed:
			return v, false
		}

		select {
		case <-q.ready:
		case <-ctx.Done():
			var zero T
			return zero, false
		}
	}
}

// Close stops further pushes. Items already queued remain poppable.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
