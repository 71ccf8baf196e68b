package actor

import (
	"time"

	"github.com/jwebster45206/stealth-engine/pkg/dialogue"
	"github.com/jwebster45206/stealth-engine/pkg/geom"
	"github.com/jwebster45206/stealth-engine/pkg/trust"
)

// NPC represents a conversational non-player character in the encounter.
type NPC struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Type        string    `json:"type,omitempty" yaml:"type,omitempty"`               // e.g. "clerk", "dockworker"
	Disposition string    `json:"disposition,omitempty" yaml:"disposition,omitempty"` // e.g. "hostile", "neutral", "friendly"
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Position    geom.Vec2 `json:"position" yaml:"position"`

	// InteractionRadius is how close the player must be to talk.
	InteractionRadius float64 `json:"interaction_radius" yaml:"interaction_radius"`
	// Guard is summoned when trust breaches the low threshold. Empty means the nearest eligible guard.
	Guard string `json:"guard,omitempty" yaml:"guard,omitempty"`

	Trust    TrustSpec    `json:"trust" yaml:"trust"`
	Dialogue DialogueSpec `json:"dialogue" yaml:"dialogue"`
}

// TrustSpec is an NPC's starting trust and thresholds.
type TrustSpec struct {
	Start int `json:"start" yaml:"start"`
	Max   int `json:"max" yaml:"max"`
	Low   int `json:"low" yaml:"low"`
	Mid   int `json:"mid" yaml:"mid"`
	High  int `json:"high" yaml:"high"`
	// StepDelay paces each unit of a trust change; zero applies changes at once.
	StepDelay Seconds `json:"step_delay,omitempty" yaml:"step_delay,omitempty"`
}

// DefaultTrust is used by talkative guards that do not define their own.
var DefaultTrust = TrustSpec{Start: 50, Max: 100, Low: 10, Mid: 50, High: 80}

// DialogueSpec is the scripted conversation for one character.
type DialogueSpec struct {
	Layers     []dialogue.Layer `json:"layers" yaml:"layers"`
	Timeout    dialogue.Choice  `json:"timeout" yaml:"timeout"`
	TurnTime   Seconds          `json:"turn_time,omitempty" yaml:"turn_time,omitempty"`
	QuickBonus int              `json:"quick_bonus,omitempty" yaml:"quick_bonus,omitempty"`
	Repeatable bool             `json:"repeatable,omitempty" yaml:"repeatable,omitempty"`
}

// Score returns the initial trust score.
func (t TrustSpec) Score() trust.Score {
	return trust.Score{
		Current:    t.Start,
		Max:        t.Max,
		Thresholds: trust.Thresholds{Low: t.Low, Mid: t.Mid, High: t.High},
	}
}

// Script builds the dialogue script for the character id, spoken by speaker.
func (d DialogueSpec) Script(id, speaker string) dialogue.Script {
	return dialogue.Script{
		NPCID:      id,
		Speaker:    speaker,
		Layers:     d.Layers,
		Timeout:    d.Timeout,
		TurnTime:   d.TurnTime.Duration(),
		QuickBonus: d.QuickBonus,
		Repeatable: d.Repeatable,
	}
}

func (n NPC) Script() dialogue.Script {
	return n.Dialogue.Script(n.ID, n.DisplayName())
}

func (n NPC) Score() trust.Score {
	return n.Trust.Score()
}

func (n NPC) StepDelay() time.Duration {
	return n.Trust.StepDelay.Duration()
}

// DisplayName is the name shown on dialogue lines.
func (n NPC) DisplayName() string {
	if n.Name != "" {
		return n.Name
	}
	return n.ID
}
