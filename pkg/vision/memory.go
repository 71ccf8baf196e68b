package vision

import (
	"sort"
	"time"
)

// MemoryEntry lets a guard keep tracking a target it recently lost sight of.
type MemoryEntry struct {
	TargetID  string        `json:"target_id"`
	ExpiresAt time.Duration `json:"expires_at"`
}

// Memory holds a guard's unexpired memory entries, one per target.
type Memory struct {
	entries map[string]MemoryEntry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]MemoryEntry)}
}

// Remember records (or refreshes) an entry for target.
func (m *Memory) Remember(targetID string, expiresAt time.Duration) {
	m.entries[targetID] = MemoryEntry{TargetID: targetID, ExpiresAt: expiresAt}
}

// Recall reports whether target is remembered at now. Expired entries are removed.
func (m *Memory) Recall(targetID string, now time.Duration) bool {
	e, ok := m.entries[targetID]
	if !ok {
		return false
	}
	if now >= e.ExpiresAt {
		delete(m.entries, targetID)
		return false
	}
	return true
}

// Forget drops target, e.g. on re-acquisition.
func (m *Memory) Forget(targetID string) {
	delete(m.entries, targetID)
}

// Prune removes every entry expired at now and returns how many were removed.
func (m *Memory) Prune(now time.Duration) int {
	n := 0
	for id, e := range m.entries {
		if now >= e.ExpiresAt {
			delete(m.entries, id)
			n++
		}
	}
	return n
}

// Clear drops every entry.
func (m *Memory) Clear() {
	clear(m.entries)
}

func (m *Memory) Len() int {
	return len(m.entries)
}

// Entries returns the current entries ordered by target ID.
func (m *Memory) Entries() []MemoryEntry {
	out := make([]MemoryEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TargetID < out[j].TargetID })
	return out
}
