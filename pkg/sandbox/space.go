// Package sandbox provides simple in-memory collaborators for the simulation core: an open-field spatial
// index with rectangular obstacles, straight-line movement and a recording presenter. The headless runner,
// the console and the tests use them in place of a game engine.
package sandbox

import (
	"fmt"
	"math"
	"sort"

	"github.com/jwebster45206/stealth-engine/pkg/geom"
	"github.com/jwebster45206/stealth-engine/pkg/vision"
)

// Rect is an axis-aligned rectangle.
type Rect struct {
	Min geom.Vec2 `json:"min" yaml:"min"`
	Max geom.Vec2 `json:"max" yaml:"max"`
}

// Contains reports whether p lies inside or on the edge of r.
func (r Rect) Contains(p geom.Vec2) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X && p.Y >= r.Min.Y && p.Y <= r.Max.Y
}

// Center is the midpoint of r.
func (r Rect) Center() geom.Vec2 {
	return r.Min.Add(r.Max).Scale(0.5)
}

// IntersectsSegment reports whether segment a-b touches r (Liang-Barsky clipping).
func (r Rect) IntersectsSegment(a, b geom.Vec2) bool {
	d := b.Sub(a)
	t0, t1 := 0.0, 1.0
	clip := func(p, q float64) bool {
		if p == 0 {
			return q >= 0
		}
		t := q / p
		if p < 0 {
			if t > t1 {
				return false
			}
			t0 = math.Max(t0, t)
		} else {
			if t < t0 {
				return false
			}
			t1 = math.Min(t1, t)
		}
		return true
	}
	return clip(-d.X, a.X-r.Min.X) &&
		clip(d.X, r.Max.X-a.X) &&
		clip(-d.Y, a.Y-r.Min.Y) &&
		clip(d.Y, r.Max.Y-a.Y) &&
		t0 <= t1
}

type obstacle struct {
	entity vision.Entity
	rect   Rect
}

// Space is an open field of point entities and rectangular obstacles.
type Space struct {
	entities  map[string]vision.Entity
	obstacles []obstacle
	losErr    error
}

var _ vision.Spatial = (*Space)(nil)

func NewSpace() *Space {
	return &Space{entities: make(map[string]vision.Entity)}
}

// Put adds or replaces an entity.
func (s *Space) Put(e vision.Entity) {
	s.entities[e.ID] = e
}

// Move updates an entity's position and heading.
func (s *Space) Move(id string, pos, heading geom.Vec2) {
	e, ok := s.entities[id]
	if !ok {
		return
	}
	e.Pos = pos
	if !heading.IsZero() {
		e.Heading = heading
	}
	s.entities[id] = e
}

func (s *Space) Remove(id string) {
	delete(s.entities, id)
}

// AddObstacle registers a rectangle that blocks line of sight and movement. Extra tags are added to the
// obstacle tag.
func (s *Space) AddObstacle(id string, r Rect, tags ...string) error {
	if r.Max.X < r.Min.X || r.Max.Y < r.Min.Y {
		return fmt.Errorf("obstacle %q has inverted bounds", id)
	}
	e := vision.Entity{ID: id, Pos: r.Center(), Tags: append([]string{vision.TagObstacle}, tags...)}
	s.obstacles = append(s.obstacles, obstacle{entity: e, rect: r})
	return nil
}

// Obstacles returns the obstacle rectangles in insertion order.
func (s *Space) Obstacles() []Rect {
	out := make([]Rect, len(s.obstacles))
	for i, o := range s.obstacles {
		out[i] = o.rect
	}
	return out
}

// Blocked reports whether p lies inside any obstacle.
func (s *Space) Blocked(p geom.Vec2) bool {
	for _, o := range s.obstacles {
		if o.rect.Contains(p) {
			return true
		}
	}
	return false
}

// FailLineOfSight makes every LineOfSightClear call return err until cleared with nil.
func (s *Space) FailLineOfSight(err error) {
	s.losErr = err
}

func (s *Space) Locate(id string) (vision.Entity, bool) {
	e, ok := s.entities[id]
	return e, ok
}

// FindEntitiesInRadius returns matching entities within r of pos, nearest first.
func (s *Space) FindEntitiesInRadius(pos geom.Vec2, r float64, filter vision.Filter) []vision.Entity {
	var out []vision.Entity
	for _, e := range s.entities {
		if e.Pos.Dist(pos) > r {
			continue
		}
		if filter != nil && !filter(e) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := out[i].Pos.Dist(pos), out[j].Pos.Dist(pos)
		if di != dj {
			return di < dj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Space) LineOfSightClear(a, b geom.Vec2, obstruction vision.Filter) (bool, error) {
	if s.losErr != nil {
		return false, s.losErr
	}
	for _, o := range s.obstacles {
		if obstruction != nil && !obstruction(o.entity) {
			continue
		}
		if o.rect.IntersectsSegment(a, b) {
			return false, nil
		}
	}
	return true, nil
}
