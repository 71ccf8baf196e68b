package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jwebster45206/stealth-engine/pkg/scenario"
	"github.com/jwebster45206/stealth-engine/pkg/world"
)

func TestMockStorage_Snapshots(t *testing.T) {
	m := NewMockStorage()
	ctx := context.Background()
	id := uuid.New()

	loaded, err := m.LoadSnapshot(ctx, id)
	if err != nil || loaded != nil {
		t.Fatalf("expected nil, nil for a missing snapshot, got %v, %v", loaded, err)
	}

	if err := m.SaveSnapshot(ctx, id, &world.Snapshot{Scenario: "Harbor Warehouse", Tick: 3}); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	loaded, err = m.LoadSnapshot(ctx, id)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if loaded.Tick != 3 {
		t.Errorf("Expected tick 3, got %d", loaded.Tick)
	}

	if err := m.SaveSnapshot(ctx, id, nil); err == nil {
		t.Error("Expected error saving a nil snapshot")
	}

	if err := m.DeleteSnapshot(ctx, id); err != nil {
		t.Fatalf("DeleteSnapshot: %v", err)
	}
	if loaded, _ := m.LoadSnapshot(ctx, id); loaded != nil {
		t.Error("Expected snapshot to be deleted")
	}
}

func TestMockStorage_Scenarios(t *testing.T) {
	m := NewMockStorage()
	ctx := context.Background()
	m.AddScenario("warehouse.yaml", &scenario.Scenario{Name: "Harbor Warehouse"})

	list, err := m.ListScenarios(ctx)
	if err != nil {
		t.Fatalf("ListScenarios: %v", err)
	}
	if list["Harbor Warehouse"] != "warehouse.yaml" {
		t.Errorf("Expected warehouse.yaml, got %v", list)
	}

	s, err := m.GetScenario(ctx, "warehouse.yaml")
	if err != nil {
		t.Fatalf("GetScenario: %v", err)
	}
	if s.FileName != "warehouse.yaml" {
		t.Errorf("Expected filename to be set, got %q", s.FileName)
	}

	if _, err := m.GetScenario(ctx, "missing.yaml"); !errors.Is(err, ErrScenarioNotFound) {
		t.Errorf("Expected ErrScenarioNotFound, got %v", err)
	}

	m.SetPingError(errors.New("down"))
	if err := m.Ping(ctx); err == nil {
		t.Error("Expected ping error")
	}
}
