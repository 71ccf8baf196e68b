package sandbox

import (
	"errors"
	"time"

	"github.com/jwebster45206/stealth-engine/pkg/geom"
	"github.com/jwebster45206/stealth-engine/pkg/vision"
)

// ErrNoPath is returned by a walker whose destination is inside an obstacle.
var ErrNoPath = errors.New("no path to destination")

// Walker is a straight-line navigator. It ignores obstacles en route but refuses destinations inside one.
type Walker struct {
	id    string
	space *Space
	pos   geom.Vec2
	dest  geom.Vec2
	vel   geom.Vec2
	speed float64

	moving  bool
	failure error
}

// NewWalker registers an entity for id in space and returns its navigator.
func NewWalker(space *Space, id string, start geom.Vec2, tags ...string) *Walker {
	space.Put(vision.Entity{ID: id, Pos: start, Heading: geom.V(1, 0), Tags: tags})
	return &Walker{id: id, space: space, pos: start, dest: start}
}

// Fail makes every SetDestination return err until cleared with nil.
func (w *Walker) Fail(err error) {
	w.failure = err
}

func (w *Walker) SetDestination(pos geom.Vec2) error {
	if w.failure != nil {
		return w.failure
	}
	if w.space.Blocked(pos) {
		return ErrNoPath
	}
	w.dest = pos
	w.moving = true
	return nil
}

func (w *Walker) Stop() error {
	w.dest = w.pos
	w.vel = geom.Vec2{}
	w.moving = false
	return nil
}

func (w *Walker) SetSpeed(speed float64) {
	w.speed = speed
}

func (w *Walker) Speed() float64 {
	return w.speed
}

func (w *Walker) Position() geom.Vec2 {
	return w.pos
}

func (w *Walker) Velocity() geom.Vec2 {
	return w.vel
}

func (w *Walker) Destination() geom.Vec2 {
	return w.dest
}

func (w *Walker) RemainingDistance() float64 {
	return w.pos.Dist(w.dest)
}

// Step moves the walker toward its destination for dt.
func (w *Walker) Step(dt time.Duration) {
	if !w.moving || dt <= 0 {
		w.vel = geom.Vec2{}
		return
	}
	to := w.dest.Sub(w.pos)
	dist := to.Len()
	travel := w.speed * dt.Seconds()
	if dist <= travel || dist == 0 {
		w.vel = to.Scale(1 / dt.Seconds())
		w.pos = w.dest
		w.moving = false
	} else {
		w.vel = to.Normalize().Scale(w.speed)
		w.pos = w.pos.Add(w.vel.Scale(dt.Seconds()))
	}
	w.space.Move(w.id, w.pos, w.vel.Normalize())
}
