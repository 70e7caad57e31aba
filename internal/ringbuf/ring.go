// Package ringbuf provides a fixed-capacity circular buffer.
package ringbuf

import "sync"

// Buffer is a thread-safe circular buffer that keeps the most recent
// Cap() items, overwriting the oldest once full.
type Buffer[T any] struct {
	items []T
	size  int
	head  int
	count int
	mu    sync.RWMutex
}

// New creates a buffer with the given capacity. Capacities below one are
// raised to one.
func New[T any](size int) *Buffer[T] {
	if size < 1 {
		size = 1
	}
	return &Buffer[T]{
		items: make([]T, size),
		size:  size,
	}
}

// Push appends an item, overwriting the oldest item if the buffer is full.
func (b *Buffer[T]) Push(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.size

	if b.count < b.size {
		b.count++
	}
}

// Snapshot returns the retained items oldest first.
func (b *Buffer[T]) Snapshot() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.count == 0 {
		return nil
	}

	result := make([]T, b.count)

	if b.count < b.size {
		copy(result, b.items[:b.count])
	} else {
		// Full: oldest item sits at head
		n := copy(result, b.items[b.head:])
		copy(result[n:], b.items[:b.head])
	}

	return result
}

// Len returns the number of retained items.
func (b *Buffer[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Cap returns the buffer capacity.
func (b *Buffer[T]) Cap() int {
	return b.size
}
