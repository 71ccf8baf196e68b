// Package coordinator owns the aggregate alarm state for a group of guards. Once per tick it recomputes the
// alarm, sends idle guards to converging flank points and applies the player speed penalty.
package coordinator

import (
	"log/slog"
	"math"
	"sort"

	"github.com/jwebster45206/stealth-engine/pkg/geom"
)

const defaultSeparationPasses = 8

// Config tunes flanking, separation and the speed penalty.
type Config struct {
	FlankDistance     float64 `json:"flank_distance" yaml:"flank_distance"`
	FlankAngleDegrees float64 `json:"flank_angle_degrees" yaml:"flank_angle_degrees"`
	MinSeparation     float64 `json:"min_separation" yaml:"min_separation"`

	SlowRadius float64 `json:"slow_radius" yaml:"slow_radius"`
	// SlowFactor is the player's speed multiplier while any chasing guard is within SlowRadius.
	SlowFactor float64 `json:"slow_factor" yaml:"slow_factor"`
	// CountScaled replaces the on/off penalty with 1 - SlowPerGuard*n, floored at MinSpeedFactor.
	CountScaled    bool    `json:"count_scaled" yaml:"count_scaled"`
	SlowPerGuard   float64 `json:"slow_per_guard" yaml:"slow_per_guard"`
	MinSpeedFactor float64 `json:"min_speed_factor" yaml:"min_speed_factor"`

	SeparationPasses int `json:"separation_passes,omitempty" yaml:"separation_passes,omitempty"`
}

// Member is a guard as seen by the coordinator.
type Member interface {
	ID() string
	Position() geom.Vec2
	IsChasing() bool
	AlertEligible() bool
	SharedAlert(flank geom.Vec2)
}

// SpeedControl receives the player speed multiplier.
type SpeedControl interface {
	SetSpeedMultiplier(m float64)
}

// Result is the outcome of one coordinator pass.
type Result struct {
	Alarmed         bool                 `json:"alarmed"`
	Assignments     map[string]geom.Vec2 `json:"assignments,omitempty"`
	SpeedMultiplier float64              `json:"speed_multiplier"`
	NearbyGuards    int                  `json:"nearby_guards"`
}

// Hooks receive coordinator outcomes. Any field may be nil.
type Hooks struct {
	AlarmChanged  func(alarmed bool)
	FlankAssigned func(guardID string, flank geom.Vec2)
}

// Coordinator is the single writer of the alarm state. It is not safe for concurrent use.
type Coordinator struct {
	cfg    Config
	hooks  Hooks
	logger *slog.Logger

	alarmed  bool
	speedMul float64
	last     Result
}

func New(cfg Config, hooks Hooks, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SeparationPasses <= 0 {
		cfg.SeparationPasses = defaultSeparationPasses
	}
	if cfg.SlowFactor <= 0 || cfg.SlowFactor > 1 {
		cfg.SlowFactor = 1
	}
	return &Coordinator{cfg: cfg, hooks: hooks, logger: logger, speedMul: 1, last: Result{SpeedMultiplier: 1}}
}

// Alarmed is the alarm state as of the last Update.
func (c *Coordinator) Alarmed() bool {
	return c.alarmed
}

// Last returns the result of the last Update.
func (c *Coordinator) Last() Result {
	return c.last
}

// Update runs one coordinator pass. speed may be nil.
func (c *Coordinator) Update(members []Member, target geom.Vec2, speed SpeedControl) Result {
	ordered := make([]Member, len(members))
	copy(ordered, members)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID() < ordered[j].ID() })

	res := Result{}
	var chasers []geom.Vec2
	var candidates []Member
	for _, m := range ordered {
		if m.IsChasing() {
			res.Alarmed = true
			chasers = append(chasers, m.Position())
			if c.cfg.SlowRadius > 0 && m.Position().Dist(target) <= c.cfg.SlowRadius {
				res.NearbyGuards++
			}
		} else if m.AlertEligible() {
			candidates = append(candidates, m)
		}
	}

	if res.Alarmed != c.alarmed {
		c.alarmed = res.Alarmed
		if c.alarmed {
			c.logger.Info("Alarm raised", "chasing", len(chasers))
		} else {
			c.logger.Info("Alarm cleared")
		}
		if c.hooks.AlarmChanged != nil {
			c.hooks.AlarmChanged(c.alarmed)
		}
	}

	if res.Alarmed && len(candidates) > 0 {
		res.Assignments = c.assign(candidates, chasers, target)
		for _, m := range candidates {
			flank := res.Assignments[m.ID()]
			m.SharedAlert(flank)
			if c.hooks.FlankAssigned != nil {
				c.hooks.FlankAssigned(m.ID(), flank)
			}
		}
	}

	res.SpeedMultiplier = c.speedFactor(res.NearbyGuards)
	if speed != nil && res.SpeedMultiplier != c.speedMul {
		speed.SetSpeedMultiplier(res.SpeedMultiplier)
	}
	c.speedMul = res.SpeedMultiplier
	c.last = res
	return res
}

// FlankPoint is the approach point for a guard at guard closing on target: target plus the reversed
// guard->target direction, rotated by angleRad, scaled to distance.
func FlankPoint(guard, target geom.Vec2, distance, angleRad float64) geom.Vec2 {
	dir := target.Sub(guard).Normalize()
	if dir.IsZero() {
		dir = geom.V(1, 0)
	}
	return target.Add(dir.Scale(-1).Rotate(angleRad).Scale(distance))
}

func (c *Coordinator) assign(candidates []Member, chasers []geom.Vec2, target geom.Vec2) map[string]geom.Vec2 {
	angle := geom.Deg2Rad(c.cfg.FlankAngleDegrees)
	points := make([]geom.Vec2, len(candidates))
	for i, m := range candidates {
		sign := 1.0
		if i%2 == 1 {
			sign = -1
		}
		points[i] = FlankPoint(m.Position(), target, c.cfg.FlankDistance, sign*angle)
	}

	if c.cfg.MinSeparation > 0 {
		c.separate(points, chasers)
	}

	out := make(map[string]geom.Vec2, len(candidates))
	for i, m := range candidates {
		out[m.ID()] = points[i]
	}
	return out
}

// separate pushes each flank point away from any chaser position or earlier flank point closer than
// MinSeparation, by the deficit, for a bounded number of passes.
func (c *Coordinator) separate(points, fixed []geom.Vec2) {
	minSep := c.cfg.MinSeparation
	push := func(p, from geom.Vec2) geom.Vec2 {
		d := p.Dist(from)
		if d >= minSep {
			return p
		}
		away := p.Sub(from).Normalize()
		if away.IsZero() {
			away = geom.V(1, 0)
		}
		return p.Add(away.Scale(minSep - d))
	}

	for pass := 0; pass < c.cfg.SeparationPasses; pass++ {
		moved := false
		for i := range points {
			before := points[i]
			for _, f := range fixed {
				points[i] = push(points[i], f)
			}
			for j := 0; j < i; j++ {
				points[i] = push(points[i], points[j])
			}
			if points[i] != before {
				moved = true
			}
		}
		if !moved {
			return
		}
	}
}

func (c *Coordinator) speedFactor(nearby int) float64 {
	if nearby == 0 {
		return 1
	}
	if !c.cfg.CountScaled {
		return c.cfg.SlowFactor
	}
	return math.Max(c.cfg.MinSpeedFactor, 1-c.cfg.SlowPerGuard*float64(nearby))
}
