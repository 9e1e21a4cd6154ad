// Package queue provides the fixed-capacity FIFO that sits beneath the event
// bus, the action queue and the UI dispatch queue.
//
// Producers never block: TryPush and TryPushFront either place the value or
// report that the queue is full. Consumers may wait for a bounded time with
// Pop, which doubles as their shutdown-check point.
package queue

import (
	"context"
	"sync"
	"time"
)

// Bounded is a ring-buffer FIFO with a fixed capacity. It is safe for
// concurrent use by any number of producers and consumers.
type Bounded[T any] struct {
	mu   sync.Mutex
	buf  []T
	head int
	n    int
	// notify has capacity 1 and wakes one waiting Pop after a push.
	notify chan struct{}
}

// NewBounded returns an empty queue holding at most capacity items.
// Non-positive capacities are treated as 1.
func NewBounded[T any](capacity int) *Bounded[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Bounded[T]{
		buf:    make([]T, capacity),
		notify: make(chan struct{}, 1),
	}
}

// TryPush appends v at the tail. It returns false without blocking when the
// queue is full.
func (q *Bounded[T]) TryPush(v T) bool {
	q.mu.Lock()
	if q.n == len(q.buf) {
		q.mu.Unlock()
		return false
	}
	q.buf[(q.head+q.n)%len(q.buf)] = v
	q.n++
	q.mu.Unlock()
	q.wake()
	return true
}

// TryPushFront inserts v ahead of everything already queued. It returns false
// without blocking when the queue is full.
func (q *Bounded[T]) TryPushFront(v T) bool {
	q.mu.Lock()
	if q.n == len(q.buf) {
		q.mu.Unlock()
		return false
	}
	q.head = (q.head - 1 + len(q.buf)) % len(q.buf)
	q.buf[q.head] = v
	q.n++
	q.mu.Unlock()
	q.wake()
	return true
}

// TryPop removes and returns the head item, if any.
func (q *Bounded[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if q.n == 0 {
		return zero, false
	}
	v := q.buf[q.head]
	// drop the reference so popped closures and payloads can be collected
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	return v, true
}

// Pop waits up to timeout for an item. It returns false when the timeout
// expires or ctx is done before anything arrives.
func (q *Bounded[T]) Pop(ctx context.Context, timeout time.Duration) (T, bool) {
	if v, ok := q.TryPop(); ok {
		return v, true
	}
	var zero T
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-q.notify:
			if v, ok := q.TryPop(); ok {
				// pass the wakeup on when more items remain for other consumers
				if q.Len() > 0 {
					q.wake()
				}
				return v, true
			}
		case <-timer.C:
			return zero, false
		case <-ctx.Done():
			return zero, false
		}
	}
}

// Len reports the number of queued items.
func (q *Bounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

// Cap reports the fixed capacity.
func (q *Bounded[T]) Cap() int { return len(q.buf) }

func (q *Bounded[T]) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
