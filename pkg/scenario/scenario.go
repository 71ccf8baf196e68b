// Package scenario loads encounter definitions: the player, conversational NPCs, guards and their
// templates, obstacles and engine timings.
package scenario

import (
	"github.com/jwebster45206/stealth-engine/pkg/actor"
	"github.com/jwebster45206/stealth-engine/pkg/coordinator"
	"github.com/jwebster45206/stealth-engine/pkg/dialogue"
	"github.com/jwebster45206/stealth-engine/pkg/geom"
)

const (
	DefaultPlayerID    = "player"
	DefaultPlayerSpeed = 3.0
)

// Scenario is the template for one stealth encounter.
type Scenario struct {
	Name        string `json:"name" yaml:"name"`
	FileName    string `json:"file_name,omitempty" yaml:"file_name,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	PlayerID string     `json:"player_id,omitempty" yaml:"player_id,omitempty"`
	Player   PlayerSpec `json:"player" yaml:"player"`

	NPCs           []actor.NPC            `json:"npcs" yaml:"npcs"`
	GuardTemplates map[string]actor.Guard `json:"guard_templates,omitempty" yaml:"guard_templates,omitempty"`
	Guards         []actor.Guard          `json:"guards" yaml:"guards"`
	Obstacles      []Obstacle             `json:"obstacles,omitempty" yaml:"obstacles,omitempty"`

	Coordinator coordinator.Config `json:"coordinator" yaml:"coordinator"`
	Dialogue    DialogueSettings   `json:"dialogue" yaml:"dialogue"`
	// TrustGate unlocks higher-tier content once enough NPCs trust the player.
	TrustGate *TrustGate `json:"trust_gate,omitempty" yaml:"trust_gate,omitempty"`
}

// PlayerSpec is the player's spawn point and base speed.
type PlayerSpec struct {
	Start geom.Vec2 `json:"start" yaml:"start"`
	Speed float64   `json:"speed,omitempty" yaml:"speed,omitempty"`
}

// Obstacle is an axis-aligned wall or crate that blocks sight and movement.
type Obstacle struct {
	ID   string    `json:"id" yaml:"id"`
	Min  geom.Vec2 `json:"min" yaml:"min"`
	Max  geom.Vec2 `json:"max" yaml:"max"`
	Tags []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// DialogueSettings are engine-wide conversation timings. Zero values take the engine defaults.
type DialogueSettings struct {
	CharDelay        actor.Seconds       `json:"char_delay,omitempty" yaml:"char_delay,omitempty"`
	LinePause        actor.Seconds       `json:"line_pause,omitempty" yaml:"line_pause,omitempty"`
	ReactionDuration actor.Seconds       `json:"reaction_duration,omitempty" yaml:"reaction_duration,omitempty"`
	TurnTime         actor.Seconds       `json:"turn_time,omitempty" yaml:"turn_time,omitempty"`
	Reactions        *dialogue.Reactions `json:"reactions,omitempty" yaml:"reactions,omitempty"`
	Seed             uint64              `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// TrustGate requires Required NPCs at or above Threshold.
type TrustGate struct {
	Required  int `json:"required" yaml:"required"`
	Threshold int `json:"threshold" yaml:"threshold"`
}

// EngineConfig merges the settings over dialogue.DefaultConfig.
func (d DialogueSettings) EngineConfig() dialogue.Config {
	cfg := dialogue.DefaultConfig()
	if d.CharDelay > 0 {
		cfg.CharDelay = d.CharDelay.Duration()
	}
	if d.LinePause > 0 {
		cfg.LinePause = d.LinePause.Duration()
	}
	if d.ReactionDuration > 0 {
		cfg.ReactionDuration = d.ReactionDuration.Duration()
	}
	if d.TurnTime > 0 {
		cfg.DefaultTurnTime = d.TurnTime.Duration()
	}
	if d.Reactions != nil {
		cfg.Reactions = *d.Reactions
	}
	if d.Seed != 0 {
		cfg.Seed = d.Seed
	}
	return cfg
}

// NPC returns the NPC with id.
func (s *Scenario) NPC(id string) (actor.NPC, bool) {
	for _, n := range s.NPCs {
		if n.ID == id {
			return n, true
		}
	}
	return actor.NPC{}, false
}

// Guard returns the guard with id.
func (s *Scenario) Guard(id string) (actor.Guard, bool) {
	for _, g := range s.Guards {
		if g.ID == id {
			return g, true
		}
	}
	return actor.Guard{}, false
}

// applyDefaults fills unset fields and expands guard templates in place.
func (s *Scenario) applyDefaults() {
	if s.PlayerID == "" {
		s.PlayerID = DefaultPlayerID
	}
	if s.Player.Speed == 0 {
		s.Player.Speed = DefaultPlayerSpeed
	}
	for i, g := range s.Guards {
		if g.Template == "" {
			continue
		}
		tmpl, ok := s.GuardTemplates[g.Template]
		if !ok {
			continue
		}
		s.Guards[i] = *actor.NewGuard(&tmpl, &g)
	}
}
