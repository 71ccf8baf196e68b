package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jwebster45206/stealth-engine/pkg/scenario"
	"golang.org/x/sync/errgroup"
)

// Manager hosts several workers in one process, one per encounter.
type Manager struct {
	opts Options
	deps Deps
	log  *slog.Logger

	mu      sync.Mutex
	workers map[uuid.UUID]*Worker
	group   errgroup.Group
	closed  bool
}

// NewManager returns a manager whose workers share opts (minus the IDs) and deps.
func NewManager(opts Options, deps Deps, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	opts.WorkerID = ""
	opts.EncounterID = uuid.Nil
	return &Manager{
		opts:    opts,
		deps:    deps,
		log:     log,
		workers: make(map[uuid.UUID]*Worker),
	}
}

// Start builds an encounter from scn and runs it in the background.
func (m *Manager) Start(scn *scenario.Scenario) (*Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errors.New("manager is shut down")
	}

	w, err := New(scn, m.opts, m.deps, m.log)
	if err != nil {
		return nil, err
	}
	m.workers[w.EncounterID()] = w
	m.group.Go(func() error {
		if err := w.Start(); err != nil {
			m.log.Error("Worker exited with error", "encounter_id", w.EncounterID().String(), "error", err)
		}
		m.mu.Lock()
		delete(m.workers, w.EncounterID())
		m.mu.Unlock()
		return nil
	})
	return w, nil
}

// Get returns the live worker for an encounter.
func (m *Manager) Get(encounterID uuid.UUID) (*Worker, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workers[encounterID]
	return w, ok
}

// Stop stops one encounter and waits for its final snapshot. Reports whether it was running here.
func (m *Manager) Stop(encounterID uuid.UUID) bool {
	w, ok := m.Get(encounterID)
	if !ok {
		return false
	}
	w.Stop()
	<-w.Done()
	m.mu.Lock()
	delete(m.workers, encounterID)
	m.mu.Unlock()
	return true
}

// Len returns the number of running encounters.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workers)
}

// Run blocks until ctx is done, then stops every worker and waits for them.
func (m *Manager) Run(ctx context.Context) error {
	<-ctx.Done()
	m.Shutdown()
	return nil
}

// Shutdown stops every worker and waits for them to exit.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	for _, w := range m.workers {
		w.Stop()
	}
	m.mu.Unlock()
	_ = m.group.Wait()
	m.log.Info("All workers stopped")
}
