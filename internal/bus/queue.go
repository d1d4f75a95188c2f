package bus

import (
	"context"
	"sync"
	"sync/atomic"

	"trader/internal/ledger"
	"trader/pkg/exception"
)

var (
	ErrQueueFull   = exception.ErrQueueFull
	ErrQueueClosed = exception.ErrQueueClosed
)

// Queue is a bounded, non-blocking queue.
type Queue[T any] struct {
	ch     chan T
	closed uint32
	drops  uint64
}

// NewQueue allocates a queue with the given capacity.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue[T]{ch: make(chan T, capacity)}
}

// TryPublish enqueues v without blocking.
func (q *Queue[T]) TryPublish(v T) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return ErrQueueClosed
	}
	select {
	case q.ch <- v:
		return nil
	default:
		atomic.AddUint64(&q.drops, 1)
		return ErrQueueFull
	}
}

// Drops returns the number of values rejected because the queue was full.
func (q *Queue[T]) Drops() uint64 {
	return atomic.LoadUint64(&q.drops)
}

// Close stops the queue from accepting new values. Queued values are still
// delivered to Run.
func (q *Queue[T]) Close() {
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		close(q.ch)
	}
}

// Run consumes values until the context is done or the queue is closed and
// drained.
func (q *Queue[T]) Run(ctx context.Context, handler func(T)) {
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-q.ch:
			if !ok {
				return
			}
			handler(v)
		}
	}
}

// Fanout delivers each value to every handler in order.
func Fanout[T any](handlers ...func(T)) func(T) {
	return func(v T) {
		for _, h := range handlers {
			h(v)
		}
	}
}

// EquityFeed is the queue of daily equity points published by the live loop.
type EquityFeed = Queue[ledger.Point]

// Latest keeps the most recent values for readers on other goroutines.
type Latest[T any] struct {
	mu     sync.RWMutex
	values []T
	limit  int
}

// NewLatest keeps at most limit values, all of them when limit <= 0.
func NewLatest[T any](limit int) *Latest[T] {
	return &Latest[T]{limit: limit}
}

// Add appends v, dropping the oldest value past the limit.
func (l *Latest[T]) Add(v T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.values = append(l.values, v)
	if l.limit > 0 && len(l.values) > l.limit {
		l.values = append(l.values[:0:0], l.values[len(l.values)-l.limit:]...)
	}
}

// Values returns a copy of the kept values, oldest first.
func (l *Latest[T]) Values() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]T(nil), l.values...)
}
