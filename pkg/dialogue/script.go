// Package dialogue runs layered, timed, trust-scored conversations with NPCs.
//
// One Engine serves every NPC; what differs between characters is data (a Script per NPC and its
// trust ledger), not code.
package dialogue

import (
	"fmt"
	"time"

	"github.com/jwebster45206/stealth-engine/pkg/fault"
)

// Choice is one labeled player response.
type Choice struct {
	Label      string `json:"label" yaml:"label"`
	TrustDelta int    `json:"trust_delta" yaml:"trust_delta"`
	// NextNPCLine replaces the next layer's opening line when this choice is taken.
	NextNPCLine string `json:"next_npc_line,omitempty" yaml:"next_npc_line,omitempty"`
	// Hostile ends a guard exchange in pursuit immediately.
	Hostile bool `json:"hostile,omitempty" yaml:"hostile,omitempty"`
	// Provokes counts toward a guard's provocation threshold.
	Provokes bool `json:"provokes,omitempty" yaml:"provokes,omitempty"`
}

// Layer is one exchange: an NPC line followed by the player's options.
type Layer struct {
	NPCLine string   `json:"npc_line" yaml:"npc_line"`
	Choices []Choice `json:"choices" yaml:"choices"`
}

// Script is the static conversation data for one NPC.
type Script struct {
	NPCID   string
	Speaker string
	Layers  []Layer
	// Timeout is applied when the countdown elapses without an answer.
	Timeout Choice
	// TurnTime is the countdown per layer; zero uses the engine default.
	TurnTime time.Duration
	// QuickBonus is added to the delta of any answer given before the countdown elapses.
	QuickBonus int
	// Repeatable scripts can be replayed after a completed conversation once the player leaves and returns.
	Repeatable bool
}

// Validate checks the script is playable.
func (s *Script) Validate() error {
	if s.NPCID == "" {
		return fmt.Errorf("%w: dialogue script has no npc id", fault.ErrConfiguration)
	}
	if len(s.Layers) == 0 {
		return fmt.Errorf("%w: npc %q dialogue has no layers", fault.ErrConfiguration, s.NPCID)
	}
	for i, l := range s.Layers {
		if len(l.Choices) == 0 {
			return fmt.Errorf("%w: npc %q dialogue layer %d has no choices", fault.ErrConfiguration, s.NPCID, i+1)
		}
	}
	if s.Timeout.Label == "" {
		return fmt.Errorf("%w: npc %q dialogue has no timeout choice", fault.ErrConfiguration, s.NPCID)
	}
	if s.TurnTime < 0 {
		return fmt.Errorf("%w: npc %q dialogue turn time is negative", fault.ErrConfiguration, s.NPCID)
	}
	return nil
}
