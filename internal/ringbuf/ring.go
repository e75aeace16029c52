// Package ringbuf is a fixed-capacity FIFO history of recent items.
package ringbuf

import "sync"

type Ring[T any] struct {
	mu    sync.Mutex
	buf   []T
	start int // index of the oldest item
	n     int
}

// New returns a ring holding at most capacity items (minimum 1).
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Append adds item, evicting the oldest entry when full.
func (r *Ring[T]) Append(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = item
		r.n++
		return
	}
	r.buf[r.start] = item
	r.start = (r.start + 1) % len(r.buf)
}

// Snapshot returns up to limit of the most recent items, oldest first.
// A limit <= 0 returns everything.
func (r *Ring[T]) Snapshot(limit int) []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := r.n
	if limit > 0 && limit < k {
		k = limit
	}
	out := make([]T, k)
	first := r.start + r.n - k
	for i := 0; i < k; i++ {
		out[i] = r.buf[(first+i)%len(r.buf)]
	}
	return out
}

func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.start, r.n = 0, 0
}

func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

func (r *Ring[T]) Cap() int { return len(r.buf) }
