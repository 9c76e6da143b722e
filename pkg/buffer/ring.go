package buffer

import "sync"

// Ring is a thread-safe buffer of fixed capacity that overwrites the
// oldest element when full. It is suited to sliding windows of recent
// data such as rolling audio samples or log tails. Producers never
// block.
type Ring[T any] struct {
	mu    sync.Mutex
	buf   []T
	start int
	count int
}

// NewRing creates a Ring with the given capacity. Capacity must be at
// least 1.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Add appends an element, overwriting the oldest when the ring is full.
func (r *Ring[T]) Add(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := (r.start + r.count) % len(r.buf)
	r.buf[idx] = item
	if r.count < len(r.buf) {
		r.count++
	} else {
		r.start = (r.start + 1) % len(r.buf)
	}
}

// AddAll appends every element of items in order.
func (r *Ring[T]) AddAll(items []T) {
	for _, item := range items {
		r.Add(item)
	}
}

// Snapshot returns a copy of the buffered elements, oldest first.
func (r *Ring[T]) Snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// Tail returns a copy of at most the n most recent elements, oldest
// first.
func (r *Ring[T]) Tail(n int) []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n > r.count {
		n = r.count
	}
	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = r.buf[(r.start+r.count-n+i)%len(r.buf)]
	}
	return out
}

// Len returns the number of buffered elements.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Clear discards all buffered elements.
func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.start = 0
	r.count = 0
}
