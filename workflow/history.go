package workflow

import "sync"

// History keeps a bounded list of terminal instances, newest first.
// When the bound is exceeded the oldest entries fall off.
type History struct {
	mu      sync.RWMutex
	maxSize int
	entries []Snapshot
	byID    map[string]int
}

// NewHistory creates a history bounded to maxSize entries (defaults to
// 100 when maxSize <= 0).
func NewHistory(maxSize int) *History {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &History{
		maxSize: maxSize,
		byID:    make(map[string]int),
	}
}

// Add archives a terminal instance.
func (h *History) Add(inst *Instance) {
	snap := inst.Snapshot()

	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append([]Snapshot{snap}, h.entries...)
	if len(h.entries) > h.maxSize {
		h.entries = h.entries[:h.maxSize]
	}

	h.byID = make(map[string]int, len(h.entries))
	for idx, e := range h.entries {
		h.byID[e.ID] = idx
	}
}

// Get returns the archived snapshot for an instance ID.
func (h *History) Get(id string) (Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	idx, ok := h.byID[id]
	if !ok {
		return Snapshot{}, false
	}
	return h.entries[idx], true
}

// Recent returns up to n of the most recent snapshots, newest first.
func (h *History) Recent(n int) []Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n <= 0 || n > len(h.entries) {
		n = len(h.entries)
	}
	out := make([]Snapshot, n)
	copy(out, h.entries[:n])
	return out
}

// Len returns the number of archived instances.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}
