package vision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemory_ExpiryBoundary(t *testing.T) {
	const lostAt = 3 * time.Second
	const duration = 4 * time.Second
	const eps = time.Millisecond

	m := NewMemory()
	m.Remember("player", lostAt+duration)

	assert.True(t, m.Recall("player", lostAt))
	assert.True(t, m.Recall("player", lostAt+duration-eps))
	assert.False(t, m.Recall("player", lostAt+duration+eps))
	assert.Zero(t, m.Len(), "expired entry is dropped on recall")
}

func TestMemory_RefreshAndForget(t *testing.T) {
	m := NewMemory()
	m.Remember("player", time.Second)
	m.Remember("player", 5*time.Second)
	assert.Equal(t, 1, m.Len())
	assert.True(t, m.Recall("player", 2*time.Second))

	m.Forget("player")
	assert.False(t, m.Recall("player", 0))
}

func TestMemory_Prune(t *testing.T) {
	m := NewMemory()
	m.Remember("a", time.Second)
	m.Remember("b", 3*time.Second)
	m.Remember("c", 2*time.Second)

	assert.Equal(t, 2, m.Prune(2*time.Second))
	entries := m.Entries()
	assert.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].TargetID)

	m.Clear()
	assert.Zero(t, m.Len())
}
