package sandbox

import (
	"time"

	"github.com/jwebster45206/stealth-engine/pkg/geom"
	"github.com/jwebster45206/stealth-engine/pkg/vision"
)

// Player is the controllable target. Its speed multiplier is set by the coordinator.
type Player struct {
	id         string
	space      *Space
	pos        geom.Vec2
	heading    geom.Vec2
	input      geom.Vec2
	speed      float64
	multiplier float64
	frozen     bool
}

func NewPlayer(space *Space, id string, start geom.Vec2, speed float64) *Player {
	space.Put(vision.Entity{ID: id, Pos: start, Heading: geom.V(1, 0), Tags: []string{vision.TagPlayer}})
	return &Player{id: id, space: space, pos: start, heading: geom.V(1, 0), speed: speed, multiplier: 1}
}

func (p *Player) ID() string {
	return p.id
}

func (p *Player) Position() geom.Vec2 {
	return p.pos
}

func (p *Player) Heading() geom.Vec2 {
	return p.heading
}

func (p *Player) SetSpeedMultiplier(m float64) {
	p.multiplier = m
}

func (p *Player) SpeedMultiplier() float64 {
	return p.multiplier
}

// Freeze removes player control for the rest of the encounter.
func (p *Player) Freeze() {
	p.frozen = true
	p.input = geom.Vec2{}
}

func (p *Player) Frozen() bool {
	return p.frozen
}

// SetInput sets the movement direction; the zero vector stands still.
func (p *Player) SetInput(dir geom.Vec2) {
	if p.frozen {
		return
	}
	p.input = dir.Normalize()
}

// Teleport places the player, ignoring obstacles.
func (p *Player) Teleport(pos geom.Vec2) {
	p.pos = pos
	p.space.Move(p.id, pos, geom.Vec2{})
}

// Step moves the player along its input for dt. Moves into an obstacle are dropped.
func (p *Player) Step(dt time.Duration) {
	if p.frozen || p.input.IsZero() || dt <= 0 {
		return
	}
	next := p.pos.Add(p.input.Scale(p.speed * p.multiplier * dt.Seconds()))
	if p.space.Blocked(next) {
		return
	}
	p.pos = next
	p.heading = p.input
	p.space.Move(p.id, p.pos, p.heading)
}
