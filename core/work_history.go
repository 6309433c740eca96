package core

import (
	"sync"
)

const defaultWorkHistoryCapacity = 100

// workHistory is a fixed-size ring of the most recent WorkRecords.
type workHistory struct {
	mu    sync.Mutex
	items []WorkRecord
	head  int
	count int
}

func newWorkHistory(capacity int) *workHistory {
	if capacity < 1 {
		capacity = defaultWorkHistoryCapacity
	}
	return &workHistory{items: make([]WorkRecord, capacity)}
}

func (h *workHistory) Add(record WorkRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.items[h.head] = record
	h.head = (h.head + 1) % len(h.items)
	if h.count < len(h.items) {
		h.count++
	}
}

// Recent returns up to limit records, newest first. limit <= 0 returns all.
func (h *workHistory) Recent(limit int) []WorkRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return nil
	}

	if limit <= 0 || limit > h.count {
		limit = h.count
	}

	out := make([]WorkRecord, 0, limit)
	for i := range limit {
		idx := (h.head - 1 - i + len(h.items)) % len(h.items)
		out = append(out, h.items[idx])
	}
	return out
}

func (h *workHistory) Last() (WorkRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return WorkRecord{}, false
	}

	idx := (h.head - 1 + len(h.items)) % len(h.items)
	return h.items[idx], true
}
