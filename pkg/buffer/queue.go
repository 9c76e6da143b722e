// Package buffer provides the bounded queues the pipeline workers
// communicate through.
//
// Queue is a fixed-capacity blocking FIFO: producers block when the queue
// is full, consumers block when it is empty. Ring is an overwriting buffer
// that keeps the most recent elements and never blocks producers.
package buffer

import (
	"fmt"
	"io"
	"sync"
)

// Queue is a thread-safe bounded FIFO queue. Put blocks while the queue is
// full and Next blocks while it is empty, giving predictable memory usage
// and flow control between a producer and a consumer.
type Queue[T any] struct {
	cond *sync.Cond

	mu         sync.Mutex
	items      []T
	capacity   int
	closeWrite bool
	closeErr   error
}

// NewQueue creates a Queue with the given capacity. Capacity must be at
// least 1.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	q := &Queue[T]{
		items:    make([]T, 0, capacity),
		capacity: capacity,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Put appends an item, blocking while the queue is full. It returns an
// error if the queue has been closed.
func (q *Queue[T]) Put(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) >= q.capacity {
		if q.closeWrite || q.closeErr != nil {
			return q.putErr()
		}
		q.cond.Wait()
	}
	if q.closeWrite || q.closeErr != nil {
		return q.putErr()
	}
	q.items = append(q.items, item)
	q.cond.Broadcast()
	return nil
}

// TryPut appends an item without blocking. It reports whether the item
// was accepted; a full or closed queue rejects the item.
func (q *Queue[T]) TryPut(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closeWrite || q.closeErr != nil || len(q.items) >= q.capacity {
		return false
	}
	q.items = append(q.items, item)
	q.cond.Broadcast()
	return true
}

func (q *Queue[T]) putErr() error {
	if q.closeErr != nil {
		return fmt.Errorf("buffer: put to closed queue: %w", q.closeErr)
	}
	return io.ErrClosedPipe
}

// Next removes and returns the oldest item. It blocks until an item is
// available or the queue is closed. A queue closed for writing returns
// io.EOF once drained.
func (q *Queue[T]) Next() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		if q.closeErr != nil {
			var zero T
			return zero, q.closeErr
		}
		if q.closeWrite {
			var zero T
			return zero, io.EOF
		}
		q.cond.Wait()
	}
	item := q.items[0]
	q.items = q.items[1:]
	q.cond.Broadcast()
	return item, nil
}

// Drain removes every queued item for which drop returns true and
// returns the number of removed items. Relative order of the kept items
// is preserved. Consumers blocked in Next are unaffected.
func (q *Queue[T]) Drain(drop func(T) bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.items[:0]
	removed := 0
	for _, item := range q.items {
		if drop(item) {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	q.items = kept
	if removed > 0 {
		q.cond.Broadcast()
	}
	return removed
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// CloseWrite marks the queue as closed for writing. Queued items remain
// readable; once drained, Next returns io.EOF.
func (q *Queue[T]) CloseWrite() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closeWrite = true
	q.cond.Broadcast()
	return nil
}

// CloseWithError closes the queue and discards all queued items. Pending
// and future calls observe err.
func (q *Queue[T]) CloseWithError(err error) error {
	if err == nil {
		err = io.ErrClosedPipe
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closeErr = err
	q.items = nil
	q.cond.Broadcast()
	return nil
}
