package actor

import (
	"github.com/jwebster45206/stealth-engine/pkg/geom"
	"github.com/jwebster45206/stealth-engine/pkg/guard"
	"github.com/jwebster45206/stealth-engine/pkg/vision"
)

// Guard describes a patrolling guard. Guards may be declared from a named template in the scenario's
// guard_templates section and override any field.
type Guard struct {
	ID          string `json:"id" yaml:"id"`
	Template    string `json:"template,omitempty" yaml:"template,omitempty"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	Route []Waypoint `json:"route,omitempty" yaml:"route,omitempty"`

	PatrolSpeed  float64 `json:"patrol_speed,omitempty" yaml:"patrol_speed,omitempty"`
	FollowSpeed  float64 `json:"follow_speed,omitempty" yaml:"follow_speed,omitempty"`
	ChaseSpeed   float64 `json:"chase_speed,omitempty" yaml:"chase_speed,omitempty"`
	FollowOffset float64 `json:"follow_offset,omitempty" yaml:"follow_offset,omitempty"`
	CatchRadius  float64 `json:"catch_radius,omitempty" yaml:"catch_radius,omitempty"`

	ChaseGrace     Seconds `json:"chase_grace,omitempty" yaml:"chase_grace,omitempty"`
	MemoryDuration Seconds `json:"memory_duration,omitempty" yaml:"memory_duration,omitempty"`
	ConfirmDelay   Seconds `json:"confirm_delay,omitempty" yaml:"confirm_delay,omitempty"`
	// ChasePermitted defaults to true when unset.
	ChasePermitted       *bool `json:"chase_permitted,omitempty" yaml:"chase_permitted,omitempty"`
	ProvocationThreshold int   `json:"provocation_threshold,omitempty" yaml:"provocation_threshold,omitempty"`

	Vision VisionSpec `json:"vision" yaml:"vision"`

	// Dialogue makes the guard talkative: it opens a conversation when the player walks up.
	Dialogue *DialogueSpec `json:"dialogue,omitempty" yaml:"dialogue,omitempty"`
	Trust    *TrustSpec    `json:"trust,omitempty" yaml:"trust,omitempty"`
}

// Waypoint is a patrol stop.
type Waypoint struct {
	Pos  geom.Vec2 `json:"pos" yaml:"pos"`
	Wait Seconds   `json:"wait,omitempty" yaml:"wait,omitempty"`
}

// VisionSpec configures a guard's sensor.
type VisionSpec struct {
	Radius             float64 `json:"radius,omitempty" yaml:"radius,omitempty"`
	FOVDegrees         float64 `json:"fov_degrees,omitempty" yaml:"fov_degrees,omitempty"`
	ConversationRadius float64 `json:"conversation_radius,omitempty" yaml:"conversation_radius,omitempty"`
	PollInterval       Seconds `json:"poll_interval,omitempty" yaml:"poll_interval,omitempty"`
}

// NewGuard builds a guard from a template with overrides applied. The overrides must carry the ID; every
// other non-zero field replaces the template's value.
func NewGuard(template, overrides *Guard) *Guard {
	if overrides == nil {
		return nil
	}
	if template == nil {
		g := *overrides
		return &g
	}

	g := *template
	g.ID = overrides.ID
	g.Template = overrides.Template

	if overrides.Name != "" {
		g.Name = overrides.Name
	}
	if overrides.Description != "" {
		g.Description = overrides.Description
	}
	if len(overrides.Route) > 0 {
		g.Route = overrides.Route
	}
	if overrides.PatrolSpeed != 0 {
		g.PatrolSpeed = overrides.PatrolSpeed
	}
	if overrides.FollowSpeed != 0 {
		g.FollowSpeed = overrides.FollowSpeed
	}
	if overrides.ChaseSpeed != 0 {
		g.ChaseSpeed = overrides.ChaseSpeed
	}
	if overrides.FollowOffset != 0 {
		g.FollowOffset = overrides.FollowOffset
	}
	if overrides.CatchRadius != 0 {
		g.CatchRadius = overrides.CatchRadius
	}
	if overrides.ChaseGrace != 0 {
		g.ChaseGrace = overrides.ChaseGrace
	}
	if overrides.MemoryDuration != 0 {
		g.MemoryDuration = overrides.MemoryDuration
	}
	if overrides.ConfirmDelay != 0 {
		g.ConfirmDelay = overrides.ConfirmDelay
	}
	if overrides.ChasePermitted != nil {
		g.ChasePermitted = overrides.ChasePermitted
	}
	if overrides.ProvocationThreshold != 0 {
		g.ProvocationThreshold = overrides.ProvocationThreshold
	}
	if overrides.Vision.Radius != 0 {
		g.Vision.Radius = overrides.Vision.Radius
	}
	if overrides.Vision.FOVDegrees != 0 {
		g.Vision.FOVDegrees = overrides.Vision.FOVDegrees
	}
	if overrides.Vision.ConversationRadius != 0 {
		g.Vision.ConversationRadius = overrides.Vision.ConversationRadius
	}
	if overrides.Vision.PollInterval != 0 {
		g.Vision.PollInterval = overrides.Vision.PollInterval
	}
	if overrides.Dialogue != nil {
		g.Dialogue = overrides.Dialogue
	}
	if overrides.Trust != nil {
		g.Trust = overrides.Trust
	}
	return &g
}

// CanChase reports whether the guard may pursue.
func (g Guard) CanChase() bool {
	return g.ChasePermitted == nil || *g.ChasePermitted
}

// Talkative reports whether the guard has a conversation script.
func (g Guard) Talkative() bool {
	return g.Dialogue != nil && len(g.Dialogue.Layers) > 0
}

// Start is the guard's spawn point, its first waypoint.
func (g Guard) Start() geom.Vec2 {
	if len(g.Route) == 0 {
		return geom.Vec2{}
	}
	return g.Route[0].Pos
}

// DisplayName is the name shown on dialogue lines.
func (g Guard) DisplayName() string {
	if g.Name != "" {
		return g.Name
	}
	return g.ID
}

// TrustSpec returns the guard's trust settings, or DefaultTrust.
func (g Guard) TrustSpec() TrustSpec {
	if g.Trust != nil {
		return *g.Trust
	}
	return DefaultTrust
}

// AgentConfig builds the state machine config for a guard tracking targetID.
func (g Guard) AgentConfig(targetID string) guard.Config {
	route := make([]guard.Waypoint, len(g.Route))
	for i, w := range g.Route {
		route[i] = guard.Waypoint{Pos: w.Pos, Wait: w.Wait.Duration()}
	}
	return guard.Config{
		ID:                   g.ID,
		TargetID:             targetID,
		Route:                route,
		PatrolSpeed:          g.PatrolSpeed,
		FollowSpeed:          g.FollowSpeed,
		ChaseSpeed:           g.ChaseSpeed,
		FollowOffset:         g.FollowOffset,
		CatchRadius:          g.CatchRadius,
		ChaseGrace:           g.ChaseGrace.Duration(),
		MemoryDuration:       g.MemoryDuration.Duration(),
		ConfirmDelay:         g.ConfirmDelay.Duration(),
		ChasePermitted:       g.CanChase(),
		Talkative:            g.Talkative(),
		ProvocationThreshold: g.ProvocationThreshold,
	}
}

func (g Guard) VisionConfig() vision.Config {
	return vision.Config{
		Radius:             g.Vision.Radius,
		FOVDegrees:         g.Vision.FOVDegrees,
		ConversationRadius: g.Vision.ConversationRadius,
		PollInterval:       g.Vision.PollInterval.Duration(),
	}
}
