package stream

import (
	"sync"
)

// RingBuffer is a fixed-size FIFO that overwrites its oldest element when full.
type RingBuffer[T any] struct {
	buffer []T
	size   int
	mu     sync.Mutex
	write  int
	count  int
}

func NewRingBuffer[T any](size int) *RingBuffer[T] {
	if size < 1 {
		size = 1
	}
	return &RingBuffer[T]{
		buffer: make([]T, size),
		size:   size,
	}
}

func (rb *RingBuffer[T]) Add(value T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.buffer[rb.write] = value
	rb.write = (rb.write + 1) % rb.size
	if rb.count < rb.size {
		rb.count++
	}
}

// Get returns the contents of the buffer, oldest first.
func (rb *RingBuffer[T]) Get() []T {
	return rb.Tail(0)
}

// Tail returns up to the n newest elements, oldest first. n <= 0 returns all.
func (rb *RingBuffer[T]) Tail(n int) []T {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if n <= 0 || n > rb.count {
		n = rb.count
	}
	result := make([]T, 0, n)
	for i := rb.count - n; i < rb.count; i++ {
		result = append(result, rb.buffer[(rb.write+rb.size-rb.count+i)%rb.size])
	}
	return result
}

func (rb *RingBuffer[T]) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Last returns the newest element, or the zero value when empty.
func (rb *RingBuffer[T]) Last() (T, bool) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.count == 0 {
		var zero T
		return zero, false
	}
	return rb.buffer[(rb.write+rb.size-1)%rb.size], true
}

// Scan calls fn for each element oldest first until fn returns false.
func (rb *RingBuffer[T]) Scan(fn func(T) bool) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	for i := 0; i < rb.count; i++ {
		if !fn(rb.buffer[(rb.write+rb.size-rb.count+i)%rb.size]) {
			break
		}
	}
}
