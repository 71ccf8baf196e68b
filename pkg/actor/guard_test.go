package actor

import (
	"testing"
	"time"

	"github.com/jwebster45206/stealth-engine/pkg/dialogue"
	"github.com/jwebster45206/stealth-engine/pkg/geom"
)

func TestNewGuard(t *testing.T) {
	no := false
	base := &Guard{
		Name:         "Sentry",
		PatrolSpeed:  1.5,
		ChaseSpeed:   4,
		CatchRadius:  1,
		ChaseGrace:   5,
		Vision:       VisionSpec{Radius: 10, FOVDegrees: 90},
		Route:        []Waypoint{{Pos: geom.V(0, 0)}},
		FollowOffset: 2,
	}

	t.Run("creates guard from template", func(t *testing.T) {
		g := NewGuard(base, &Guard{ID: "north_sentry", Template: "sentry"})

		if g.ID != "north_sentry" {
			t.Errorf("expected ID 'north_sentry', got '%s'", g.ID)
		}
		if g.Name != "Sentry" {
			t.Errorf("expected name 'Sentry', got '%s'", g.Name)
		}
		if g.Vision.Radius != 10 {
			t.Errorf("expected vision radius 10, got %v", g.Vision.Radius)
		}
		if !g.CanChase() {
			t.Error("expected chase to be permitted by default")
		}
	})

	t.Run("applies overrides", func(t *testing.T) {
		g := NewGuard(base, &Guard{
			ID:             "dock_sentry",
			ChaseSpeed:     6,
			ChasePermitted: &no,
			Vision:         VisionSpec{FOVDegrees: 120},
			Route:          []Waypoint{{Pos: geom.V(5, 5), Wait: 2}, {Pos: geom.V(9, 5)}},
		})

		if g.ChaseSpeed != 6 {
			t.Errorf("expected chase speed 6, got %v", g.ChaseSpeed)
		}
		if g.PatrolSpeed != 1.5 {
			t.Errorf("expected patrol speed from template, got %v", g.PatrolSpeed)
		}
		if g.CanChase() {
			t.Error("expected chase override to disable chasing")
		}
		if g.Vision.Radius != 10 || g.Vision.FOVDegrees != 120 {
			t.Errorf("expected merged vision, got %+v", g.Vision)
		}
		if g.Start() != geom.V(5, 5) {
			t.Errorf("expected start at first waypoint, got %v", g.Start())
		}
	})

	t.Run("does not alias the template", func(t *testing.T) {
		g := NewGuard(base, &Guard{ID: "a"})
		g.Vision.Radius = 99
		if base.Vision.Radius != 10 {
			t.Errorf("template modified: %v", base.Vision.Radius)
		}
	})

	t.Run("nil overrides", func(t *testing.T) {
		if NewGuard(base, nil) != nil {
			t.Error("expected nil")
		}
	})
}

func TestGuard_AgentConfig(t *testing.T) {
	g := Guard{
		ID:             "g1",
		Route:          []Waypoint{{Pos: geom.V(1, 2), Wait: 1.5}},
		ChaseGrace:     5,
		MemoryDuration: 0.75,
		Dialogue: &DialogueSpec{
			Layers:  []dialogue.Layer{{NPCLine: "Halt.", Choices: []dialogue.Choice{{Label: "Sorry"}}}},
			Timeout: dialogue.Choice{Label: "..."},
		},
	}

	cfg := g.AgentConfig("player")
	if cfg.TargetID != "player" {
		t.Errorf("expected target 'player', got '%s'", cfg.TargetID)
	}
	if cfg.Route[0].Wait != 1500*time.Millisecond {
		t.Errorf("expected 1.5s wait, got %v", cfg.Route[0].Wait)
	}
	if cfg.ChaseGrace != 5*time.Second || cfg.MemoryDuration != 750*time.Millisecond {
		t.Errorf("unexpected timings: %v %v", cfg.ChaseGrace, cfg.MemoryDuration)
	}
	if !cfg.Talkative {
		t.Error("expected guard with dialogue to be talkative")
	}
	if g.TrustSpec() != DefaultTrust {
		t.Errorf("expected default trust, got %+v", g.TrustSpec())
	}

	vc := (Guard{Vision: VisionSpec{PollInterval: 0.2}}).VisionConfig()
	if vc.PollInterval != 200*time.Millisecond {
		t.Errorf("expected 200ms poll, got %v", vc.PollInterval)
	}
}

func TestNPC_Builders(t *testing.T) {
	n := NPC{
		ID:    "clerk",
		Trust: TrustSpec{Start: 40, Max: 100, Low: 32, Mid: 50, High: 80, StepDelay: 0.1},
		Dialogue: DialogueSpec{
			TurnTime:   12,
			QuickBonus: 2,
			Layers:     []dialogue.Layer{{NPCLine: "Yes?", Choices: []dialogue.Choice{{Label: "Hi", TrustDelta: 5}}}},
			Timeout:    dialogue.Choice{Label: "(silence)", TrustDelta: -5},
		},
	}

	s := n.Script()
	if s.Speaker != "clerk" {
		t.Errorf("expected speaker to fall back to id, got '%s'", s.Speaker)
	}
	if s.TurnTime != 12*time.Second || s.QuickBonus != 2 {
		t.Errorf("unexpected script timing: %v %d", s.TurnTime, s.QuickBonus)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("expected valid script, got %v", err)
	}

	score := n.Score()
	if score.Current != 40 || score.Low != 32 || score.Max != 100 {
		t.Errorf("unexpected score: %+v", score)
	}
	if n.StepDelay() != 100*time.Millisecond {
		t.Errorf("expected 100ms step delay, got %v", n.StepDelay())
	}
}
