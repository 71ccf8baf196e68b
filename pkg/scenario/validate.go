package scenario

import (
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/jwebster45206/stealth-engine/pkg/actor"
	"github.com/jwebster45206/stealth-engine/pkg/fault"
)

// ScenarioKey is the Problems key for problems that are not tied to one entity.
const ScenarioKey = ""

var validIDRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)

// IsValidID reports whether id is lowercase snake_case.
func IsValidID(id string) bool {
	return validIDRegex.MatchString(id)
}

// Problems returns every configuration problem keyed by entity ID. Each error wraps
// fault.ErrConfiguration. An entity with problems is disabled at startup; the rest still run.
func Problems(s *Scenario) map[string][]error {
	p := make(map[string][]error)
	add := func(id, kind, format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		if id == ScenarioKey {
			p[id] = append(p[id], fmt.Errorf("%w: %s", fault.ErrConfiguration, msg))
			return
		}
		p[id] = append(p[id], fmt.Errorf("%w: %s %q: %s", fault.ErrConfiguration, kind, id, msg))
	}

	if s.Name == "" {
		add(ScenarioKey, "", "scenario has no name")
	}
	if s.Player.Speed <= 0 {
		add(ScenarioKey, "", "player speed must be positive")
	}
	if s.TrustGate != nil && s.TrustGate.Required > len(s.NPCs) {
		add(ScenarioKey, "", "trust gate requires %d npcs but only %d are defined", s.TrustGate.Required, len(s.NPCs))
	}
	d := s.Dialogue
	if d.CharDelay < 0 || d.LinePause < 0 || d.ReactionDuration < 0 || d.TurnTime < 0 {
		add(ScenarioKey, "", "dialogue timings must not be negative")
	}
	c := s.Coordinator
	if c.FlankDistance < 0 || c.MinSeparation < 0 || c.SlowRadius < 0 {
		add(ScenarioKey, "", "coordinator distances must not be negative")
	}
	if c.SlowFactor < 0 || c.SlowFactor > 1 || c.MinSpeedFactor < 0 || c.MinSpeedFactor > 1 {
		add(ScenarioKey, "", "coordinator speed factors must be within [0,1]")
	}

	seen := map[string]string{s.PlayerID: "player"}
	checkID := func(id, kind string) bool {
		if id == "" {
			add(ScenarioKey, "", "%s has no id", kind)
			return false
		}
		if !IsValidID(id) {
			add(id, kind, "id should be lowercase snake_case")
		}
		if prev, dup := seen[id]; dup {
			add(id, kind, "id already used by a %s", prev)
			return false
		}
		seen[id] = kind
		return true
	}

	guardIDs := make(map[string]bool, len(s.Guards))
	for _, g := range s.Guards {
		guardIDs[g.ID] = true
	}

	for _, n := range s.NPCs {
		if !checkID(n.ID, "npc") {
			continue
		}
		if n.InteractionRadius <= 0 {
			add(n.ID, "npc", "interaction_radius must be positive")
		}
		for _, err := range trustProblems(n.Trust) {
			add(n.ID, "npc", "%v", err)
		}
		script := n.Script()
		if err := script.Validate(); err != nil {
			p[n.ID] = append(p[n.ID], err)
		}
		if n.Guard != "" && !guardIDs[n.Guard] {
			add(n.ID, "npc", "summons unknown guard %q", n.Guard)
		}
	}

	for _, g := range s.Guards {
		if !checkID(g.ID, "guard") {
			continue
		}
		if g.Template != "" {
			if _, ok := s.GuardTemplates[g.Template]; !ok {
				add(g.ID, "guard", "unknown template %q", g.Template)
			}
		}
		if len(g.Route) == 0 {
			add(g.ID, "guard", "patrol route is empty")
		}
		if g.PatrolSpeed <= 0 {
			add(g.ID, "guard", "patrol_speed must be positive")
		}
		if g.CanChase() && g.ChaseSpeed <= 0 {
			add(g.ID, "guard", "chase_speed must be positive when chasing is permitted")
		}
		if g.Vision.Radius <= 0 {
			add(g.ID, "guard", "vision radius must be positive")
		}
		if g.Vision.FOVDegrees < 0 || g.Vision.FOVDegrees > 360 {
			add(g.ID, "guard", "vision fov_degrees must be within [0,360]")
		}
		if g.ChaseGrace < 0 || g.MemoryDuration < 0 || g.ConfirmDelay < 0 {
			add(g.ID, "guard", "timings must not be negative")
		}
		if g.Dialogue != nil {
			script := g.Dialogue.Script(g.ID, g.DisplayName())
			if err := script.Validate(); err != nil {
				p[g.ID] = append(p[g.ID], err)
			}
			for _, err := range trustProblems(g.TrustSpec()) {
				add(g.ID, "guard", "%v", err)
			}
		}
	}

	for i, o := range s.Obstacles {
		id := o.ID
		if id == "" {
			id = fmt.Sprintf("obstacle_%d", i+1)
		}
		if o.Max.X < o.Min.X || o.Max.Y < o.Min.Y {
			add(id, "obstacle", "max must not be less than min")
		}
	}

	return p
}

func trustProblems(t actor.TrustSpec) []error {
	var errs []error
	if t.Max <= 0 {
		errs = append(errs, errors.New("trust max must be positive"))
	}
	if t.Low < 0 || t.Low > t.Mid || t.Mid > t.High || t.High > t.Max {
		errs = append(errs, errors.New("trust thresholds must satisfy 0 <= low <= mid <= high <= max"))
	}
	if t.Start < 0 || t.Start > t.Max {
		errs = append(errs, fmt.Errorf("trust start %d is outside [0,%d]", t.Start, t.Max))
	}
	if t.StepDelay < 0 {
		errs = append(errs, errors.New("trust step_delay must not be negative"))
	}
	return errs
}

// Validate returns every problem in the scenario joined into one error, ordered by entity ID.
func Validate(s *Scenario) error {
	p := Problems(s)
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, k := range keys {
		errs = append(errs, p[k]...)
	}
	return errors.Join(errs...)
}
