package search

import (
	"sync"
	"testing"
)

// TestMailboxKeepsOrder pushes many items and checks they come out in FIFO
// order (compaction must not drop or reorder entries).
func TestMailboxKeepsOrder(t *testing.T) {
	const n = 5000
	m := newMailbox[int]()
	for i := 0; i < n; i++ {
		m.Push(i)
	}
	m.Close()

	for i := 0; i < n; i++ {
		v, ok := m.Pop()
		if !ok {
			t.Fatalf("mailbox closed after %d items, want %d", i, n)
		}
		if v != i {
			t.Fatalf("item %d: got %d", i, v)
		}
	}
	if _, ok := m.Pop(); ok {
		t.Error("Pop on a closed, drained mailbox should report false")
	}
}

// TestMailboxCompactionBoundsMemory interleaves push/pop batches and checks
// the backing slice does not grow with the number of historical pushes.
func TestMailboxCompactionBoundsMemory(t *testing.T) {
	const batchSize = 2000
	const batches = 5
	m := newMailbox[int]()

	for b := 0; b < batches; b++ {
		for i := 0; i < batchSize; i++ {
			m.Push(i)
		}
		for i := 0; i < batchSize; i++ {
			if _, ok := m.Pop(); !ok {
				t.Fatal("mailbox closed unexpectedly during drain")
			}
		}
	}

	m.mu.Lock()
	capacity := cap(m.items)
	m.mu.Unlock()
	if m.Len() != 0 {
		t.Errorf("expected empty mailbox, got %d items", m.Len())
	}
	if capacity >= batchSize*batches {
		t.Errorf("backing array capacity %d >= total pushes %d", capacity, batchSize*batches)
	}
}

func TestMailboxPopBlocksUntilPush(t *testing.T) {
	m := newMailbox[string]()
	var wg sync.WaitGroup
	var got string
	wg.Add(1)
	go func() {
		defer wg.Done()
		got, _ = m.Pop()
	}()

	m.Push("hello")
	wg.Wait()
	if got != "hello" {
		t.Errorf("got %q", got)
	}
}

func TestMailboxRejectsAfterClose(t *testing.T) {
	m := newMailbox[int]()
	m.Push(1)
	m.Close()
	if m.Push(2) {
		t.Error("Push after Close should report false")
	}
	if v, ok := m.Pop(); !ok || v != 1 {
		t.Errorf("queued item lost on close: %d %v", v, ok)
	}
}
