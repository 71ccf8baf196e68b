package worker

import (
	"context"
	"testing"
	"time"

	"github.com/jwebster45206/stealth-engine/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Lifecycle(t *testing.T) {
	store := storage.NewMockStorage()
	m := NewManager(Options{TickInterval: 5 * time.Millisecond}, Deps{Storage: store}, testLogger())

	a, err := m.Start(testScenario())
	require.NoError(t, err)
	b, err := m.Start(testScenario())
	require.NoError(t, err)
	assert.NotEqual(t, a.EncounterID(), b.EncounterID())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, m.Len())

	got, ok := m.Get(a.EncounterID())
	require.True(t, ok)
	assert.Same(t, a, got)
	require.Eventually(t, func() bool { return a.Snapshot().Tick > 2 }, 2*time.Second, 5*time.Millisecond)

	assert.True(t, m.Stop(a.EncounterID()))
	assert.Equal(t, 1, m.Len())
	snap, err := store.LoadSnapshot(context.Background(), a.EncounterID())
	require.NoError(t, err)
	assert.NotNil(t, snap)
	assert.False(t, m.Stop(a.EncounterID()))

	m.Shutdown()
	assert.Zero(t, m.Len())
	_, err = m.Start(testScenario())
	assert.Error(t, err)
}

func TestManager_Run(t *testing.T) {
	m := NewManager(Options{TickInterval: 5 * time.Millisecond}, Deps{}, testLogger())
	w, err := m.Start(testScenario())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("manager did not stop")
	}
	select {
	case <-w.Done():
	default:
		t.Fatal("worker still running after Run returned")
	}
}
