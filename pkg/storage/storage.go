package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jwebster45206/stealth-engine/pkg/scenario"
	"github.com/jwebster45206/stealth-engine/pkg/world"
)

// ErrScenarioNotFound is returned by GetScenario for an unknown file
var ErrScenarioNotFound = errors.New("scenario not found")

// Storage defines a unified interface for all storage operations
// This interface combines encounter snapshots (Redis) with scenario loading (filesystem)
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Snapshot operations (Redis-backed)
	// LoadSnapshot returns nil when the encounter has no stored snapshot
	SaveSnapshot(ctx context.Context, id uuid.UUID, snap *world.Snapshot) error
	LoadSnapshot(ctx context.Context, id uuid.UUID) (*world.Snapshot, error)
	DeleteSnapshot(ctx context.Context, id uuid.UUID) error

	// Scenario operations (filesystem-backed)
	ListScenarios(ctx context.Context) (map[string]string, error)
	GetScenario(ctx context.Context, filename string) (*scenario.Scenario, error)
}
