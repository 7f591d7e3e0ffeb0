package search

import "sync"

// mailbox is an unbounded, concurrency-safe FIFO. Push never blocks, so the
// worker cannot be held up by a slow consumer.
type mailbox[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	head   int // index of the next item to pop
	closed bool
}

func newMailbox[T any]() *mailbox[T] {
	m := &mailbox[T]{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Push enqueues v. It reports false if the mailbox has been closed.
func (m *mailbox[T]) Push(v T) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.items = append(m.items, v)
	m.mu.Unlock()
	m.cond.Signal()
	return true
}

// Pop blocks until an item is available or the mailbox is closed and empty.
func (m *mailbox[T]) Pop() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.head >= len(m.items) && !m.closed {
		m.cond.Wait()
	}
	var zero T
	if m.head >= len(m.items) {
		return zero, false
	}
	v := m.items[m.head]
	m.items[m.head] = zero
	m.head++
	// Compact once the consumed prefix dominates the backing array.
	if m.head >= 64 && m.head >= len(m.items)/2 {
		m.items = append(m.items[:0], m.items[m.head:]...)
		m.head = 0
	}
	return v, true
}

// Close stops accepting items. Items already queued are still popped.
func (m *mailbox[T]) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cond.Broadcast()
}

// Len returns the number of queued items.
func (m *mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items) - m.head
}
