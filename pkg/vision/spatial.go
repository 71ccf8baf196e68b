// Package vision implements the guards' periodic, occlusion-aware detection and their short-term memory
// of a target that slipped out of view.
package vision

import (
	"slices"

	"github.com/jwebster45206/stealth-engine/pkg/geom"
)

// Tags used by the spatial service.
const (
	TagObstacle    = "obstacle"
	TagTransparent = "transparent"
	TagPlayer      = "player"
	TagGuard       = "guard"
	TagNPC         = "npc"
)

// Entity is anything the spatial service knows the position of.
type Entity struct {
	ID      string    `json:"id"`
	Pos     geom.Vec2 `json:"pos"`
	Heading geom.Vec2 `json:"heading"`
	Tags    []string  `json:"tags,omitempty"`
}

// HasTag reports whether the entity carries tag.
func (e Entity) HasTag(tag string) bool {
	return slices.Contains(e.Tags, tag)
}

// Filter selects entities for a spatial query.
type Filter func(Entity) bool

// WithTag matches entities carrying tag.
func WithTag(tag string) Filter {
	return func(e Entity) bool { return e.HasTag(tag) }
}

// WithID matches a single entity.
func WithID(id string) Filter {
	return func(e Entity) bool { return e.ID == id }
}

// Opaque matches obstacles that block sight. Transparent obstacles such as windows only block movement.
func Opaque(e Entity) bool {
	return e.HasTag(TagObstacle) && !e.HasTag(TagTransparent)
}

// Spatial is the external spatial query service.
type Spatial interface {
	Locate(id string) (Entity, bool)
	FindEntitiesInRadius(pos geom.Vec2, r float64, filter Filter) []Entity
	// LineOfSightClear reports whether nothing matching obstruction blocks the segment a-b.
	LineOfSightClear(a, b geom.Vec2, obstruction Filter) (bool, error)
}
