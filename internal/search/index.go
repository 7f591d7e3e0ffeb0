package search

import (
	"sort"
	"sync"
)

// Index is the ordered, append-only log of entries reported by the current
// run. It also tracks the byte length of everything written to the output
// stream so that a cursor position can be mapped back to an entry.
type Index struct {
	mu      sync.Mutex
	entries []Entry
	offset  int64
}

// Append takes ownership of e, stamps its end offset and stores it.
// renderedLen is the number of bytes the entry added to the output stream,
// including its file header, gap marker and gutter.
func (x *Index) Append(e Entry, renderedLen int) Entry {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.offset += int64(renderedLen)
	e.Offset = x.offset
	x.entries = append(x.entries, e)
	return e
}

// Advance accounts for output that is not an entry, such as warning lines.
func (x *Index) Advance(n int) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.offset += int64(n)
}

// View calls fn with the entries while holding the lock. The slice must not
// be retained after fn returns.
func (x *Index) View(fn func(entries []Entry)) {
	x.mu.Lock()
	defer x.mu.Unlock()
	fn(x.entries)
}

// Lookup returns the first entry whose end offset lies beyond cursor, i.e. the
// entry whose rendered text contains that position.
func (x *Index) Lookup(cursor int64) (Entry, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	i := sort.Search(len(x.entries), func(i int) bool {
		return x.entries[i].Offset > cursor
	})
	if i == len(x.entries) {
		return Entry{}, false
	}
	return x.entries[i], true
}

// Len returns the number of entries.
func (x *Index) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.entries)
}

// Clear drops every entry and resets the output offset.
func (x *Index) Clear() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries = nil
	x.offset = 0
}
