package world

import (
	"time"

	"github.com/jwebster45206/stealth-engine/pkg/dialogue"
	"github.com/jwebster45206/stealth-engine/pkg/geom"
	"github.com/jwebster45206/stealth-engine/pkg/trust"
)

// Snapshot is a read-only view of the encounter, suitable for serialization.
type Snapshot struct {
	Scenario string        `json:"scenario"`
	Tick     uint64        `json:"tick"`
	Now      time.Duration `json:"now"`
	Alarmed  bool          `json:"alarmed"`
	Caught   bool          `json:"caught"`
	CaughtBy string        `json:"caught_by,omitempty"`
	GateOpen bool          `json:"gate_open"`

	Player   PlayerView         `json:"player"`
	NPCs     []NPCView          `json:"npcs"`
	Guards   []GuardView        `json:"guards"`
	Sessions []dialogue.Session `json:"sessions,omitempty"`
	Disabled []string           `json:"disabled,omitempty"`
}

type PlayerView struct {
	ID              string    `json:"id"`
	Position        geom.Vec2 `json:"position"`
	SpeedMultiplier float64   `json:"speed_multiplier"`
	Frozen          bool      `json:"frozen"`
}

type NPCView struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Position      geom.Vec2   `json:"position"`
	Trust         trust.Score `json:"trust"`
	Tier          string      `json:"tier"`
	InRange       bool        `json:"in_range"`
	SessionActive bool        `json:"session_active"`
	Latched       bool        `json:"latched"`
}

type GuardView struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	State        string    `json:"state"`
	Position     geom.Vec2 `json:"position"`
	Facing       geom.Vec2 `json:"facing"`
	CanSeeTarget bool      `json:"can_see_target"`
	LastKnown    geom.Vec2 `json:"last_known"`
	Remembered   bool      `json:"remembered"`
	Provocations int       `json:"provocations,omitempty"`
}

// Snapshot captures the current state.
func (w *World) Snapshot() Snapshot {
	now := w.sched.Now()
	snap := Snapshot{
		Scenario: w.scn.Name,
		Tick:     w.ticks,
		Now:      now,
		Alarmed:  w.coord.Alarmed(),
		Caught:   w.caught,
		CaughtBy: w.caughtBy,
		GateOpen: w.GateOpen(),
		Player: PlayerView{
			ID:              w.scn.PlayerID,
			Position:        w.player.Position(),
			SpeedMultiplier: w.coord.Last().SpeedMultiplier,
			Frozen:          w.caught,
		},
		Disabled: sortedKeys(w.disabled),
	}

	for _, id := range w.npcOrder {
		n := w.npcs[id]
		score, _ := w.Trust(id)
		snap.NPCs = append(snap.NPCs, NPCView{
			ID:            id,
			Name:          n.DisplayName(),
			Position:      n.Position,
			Trust:         score,
			Tier:          score.Tier().String(),
			InRange:       w.inRange[id],
			SessionActive: w.engine.IsSessionActive(id),
			Latched:       w.engine.Latched(id),
		})
	}

	for _, id := range w.order {
		u := w.guards[id]
		vs := u.sensor.State()
		snap.Guards = append(snap.Guards, GuardView{
			ID:           id,
			Name:         u.def.DisplayName(),
			State:        u.agent.State().String(),
			Position:     u.agent.Position(),
			Facing:       u.agent.Facing(),
			CanSeeTarget: vs.CanSeeTarget,
			LastKnown:    u.agent.LastKnownPosition(),
			Remembered:   u.agent.Memory().Recall(w.scn.PlayerID, now),
			Provocations: u.agent.Provocations(),
		})
	}

	for _, id := range w.engine.ActiveSessions() {
		if s, ok := w.engine.Session(id); ok {
			snap.Sessions = append(snap.Sessions, s)
		}
	}
	return snap
}
