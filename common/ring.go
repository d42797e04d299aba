package common

import "sync"

// RingBuffer keeps the most recent values added to it, up to a fixed capacity.
// Reads return copies, oldest first. It is safe for concurrent use.
type RingBuffer[T any] struct {
	mu   sync.Mutex
	vals []T
	next int // where the next value goes
	full bool
}

// NewRingBuffer returns an empty buffer holding at most size values.
// A size below 1 is treated as 1.
func NewRingBuffer[T any](size int) *RingBuffer[T] {
	if size < 1 {
		size = 1
	}
	return &RingBuffer[T]{vals: make([]T, size)}
}

// Add appends value, evicting the oldest value when the buffer is full.
func (rb *RingBuffer[T]) Add(value T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.vals[rb.next] = value
	rb.next++
	if rb.next == len(rb.vals) {
		rb.next = 0
		rb.full = true
	}
}

// Get returns every value held, oldest first.
func (rb *RingBuffer[T]) Get() []T {
	return rb.Tail(-1)
}

// Tail returns the newest n values, oldest first.
// A negative n, or one larger than Len, returns everything.
func (rb *RingBuffer[T]) Tail(n int) []T {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	held := rb.lenLocked()
	if n < 0 || n > held {
		n = held
	}
	out := make([]T, n)
	start := rb.next - n
	if start < 0 {
		start += len(rb.vals)
	}
	for i := range out {
		out[i] = rb.vals[(start+i)%len(rb.vals)]
	}
	return out
}

// Len is the number of values held.
func (rb *RingBuffer[T]) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.lenLocked()
}

func (rb *RingBuffer[T]) lenLocked() int {
	if rb.full {
		return len(rb.vals)
	}
	return rb.next
}
