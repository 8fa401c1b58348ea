package pagination

import (
	"net/url"
	"sync"
)

// Navigator is the location the page number lives in. Push adds a history
// entry; Replace rewrites the current one.
type Navigator interface {
	Current() url.Values
	Push(q url.Values)
	Replace(q url.Values)
}

// History is an in-memory Navigator with back/forward support.
type History struct {
	mu      sync.Mutex
	entries []url.Values
	pos     int
}

// NewHistory creates a history whose only entry is initial.
func NewHistory(initial url.Values) *History {
	return &History{entries: []url.Values{cloneValues(initial)}}
}

// Current returns a copy of the current entry.
func (h *History) Current() url.Values {
	h.mu.Lock()
	defer h.mu.Unlock()
	return cloneValues(h.entries[h.pos])
}

// Push drops any forward entries and appends q.
func (h *History) Push(q url.Values) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries[:h.pos+1], cloneValues(q))
	h.pos++
}

// Replace overwrites the current entry.
func (h *History) Replace(q url.Values) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[h.pos] = cloneValues(q)
}

// Back moves to the previous entry. It reports false at the first entry.
func (h *History) Back() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pos == 0 {
		return false
	}
	h.pos--
	return true
}

// Forward moves to the next entry. It reports false at the last entry.
func (h *History) Forward() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pos >= len(h.entries)-1 {
		return false
	}
	h.pos++
	return true
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

func cloneValues(q url.Values) url.Values {
	out := make(url.Values, len(q))
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	return out
}
