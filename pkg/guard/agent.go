package guard

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jwebster45206/stealth-engine/pkg/fault"
	"github.com/jwebster45206/stealth-engine/pkg/geom"
	"github.com/jwebster45206/stealth-engine/pkg/sched"
	"github.com/jwebster45206/stealth-engine/pkg/vision"
)

const (
	DefaultChaseGrace     = 5 * time.Second
	DefaultArriveDistance = 0.25
	DefaultCatchRadius    = 1.0
	DefaultNavRetry       = 2 * time.Second
)

// Navigator is the external pathfinding and movement service.
type Navigator interface {
	SetDestination(pos geom.Vec2) error
	Stop() error
	SetSpeed(speed float64)
	Position() geom.Vec2
	Velocity() geom.Vec2
	RemainingDistance() float64
}

// Locator resolves the tracked target's current position.
type Locator interface {
	Locate(id string) (vision.Entity, bool)
}

// Capability is everything the sensor and the coordinator may ask of a guard.
type Capability interface {
	PlayerDetected(targetID string, pos geom.Vec2)
	PlayerLost(targetID string, lastKnown geom.Vec2)
	StartChasing() error
	StopChasing() error
	SharedAlert(flank geom.Vec2)
}

// Waypoint is a patrol stop.
type Waypoint struct {
	Pos  geom.Vec2
	Wait time.Duration
}

// Config describes one guard.
type Config struct {
	ID       string
	TargetID string
	Route    []Waypoint

	PatrolSpeed float64
	FollowSpeed float64
	ChaseSpeed  float64

	// FollowOffset is how far behind the followed target the guard keeps.
	FollowOffset   float64
	CatchRadius    float64
	ArriveDistance float64

	ChaseGrace     time.Duration
	MemoryDuration time.Duration
	ConfirmDelay   time.Duration
	ChasePermitted bool
	// NavRetry is how long a guard that fell back to Patrol on a navigator failure waits before it may
	// chase again.
	NavRetry time.Duration

	// Talkative guards may open a conversation when the target walks up to them.
	Talkative            bool
	ProvocationThreshold int
}

// Hooks receive guard outcomes. Any field may be nil.
type Hooks struct {
	StateChanged      func(guardID string, state State)
	PlayerCaught      func(guardID string)
	DialogueRequested func(guardID, targetID string)
}

// Agent is a single guard. It is driven from the tick loop and is not safe for concurrent use.
type Agent struct {
	cfg     Config
	nav     Navigator
	locator Locator
	sched   *sched.Scheduler
	memory  *vision.Memory
	hooks   Hooks
	logger  *slog.Logger

	state  State
	facing geom.Vec2

	waypoint  int
	waitTimer *sched.Timer
	dest       geom.Vec2
	hasDest    bool
	navFailed  bool
	navBackoff *sched.Timer

	sees         bool
	confirmed    bool
	confirmTimer *sched.Timer
	lastKnown    geom.Vec2

	graceTimer   *sched.Timer
	graceExpired bool
	flank        geom.Vec2
	hasFlank     bool

	hostileSeen  bool
	provocations int
}

var _ Capability = (*Agent)(nil)

// New validates cfg and returns a guard in Patrol. A guard without a route or navigator is a configuration
// error; the caller disables it.
func New(cfg Config, nav Navigator, locator Locator, s *sched.Scheduler, hooks Hooks, logger *slog.Logger) (*Agent, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("%w: guard has no id", fault.ErrConfiguration)
	}
	if len(cfg.Route) == 0 {
		return nil, fmt.Errorf("%w: guard %q has no patrol route", fault.ErrConfiguration, cfg.ID)
	}
	if nav == nil {
		return nil, fmt.Errorf("%w: guard %q has no navigator", fault.ErrConfiguration, cfg.ID)
	}
	if locator == nil || s == nil {
		return nil, fmt.Errorf("%w: guard %q is missing a locator or scheduler", fault.ErrConfiguration, cfg.ID)
	}
	if cfg.ChaseGrace <= 0 {
		cfg.ChaseGrace = DefaultChaseGrace
	}
	if cfg.ArriveDistance <= 0 {
		cfg.ArriveDistance = DefaultArriveDistance
	}
	if cfg.CatchRadius <= 0 {
		cfg.CatchRadius = DefaultCatchRadius
	}
	if cfg.NavRetry <= 0 {
		cfg.NavRetry = DefaultNavRetry
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &Agent{
		cfg:     cfg,
		nav:     nav,
		locator: locator,
		sched:   s,
		memory:  vision.NewMemory(),
		hooks:   hooks,
		logger:  logger.With("guard_id", cfg.ID),
		state:   StatePatrol,
		facing:  geom.V(1, 0),
	}
	a.nav.SetSpeed(cfg.PatrolSpeed)
	return a, nil
}

func (a *Agent) ID() string {
	return a.cfg.ID
}

func (a *Agent) State() State {
	return a.state
}

func (a *Agent) Position() geom.Vec2 {
	return a.nav.Position()
}

// Facing is the direction of travel, or toward the conversation partner while in Dialogue.
func (a *Agent) Facing() geom.Vec2 {
	return a.facing
}

// ConversationEligible reports whether the guard may be engaged in conversation: not chasing, not already
// talking, and not done.
func (a *Agent) ConversationEligible() bool {
	return a.cfg.Talkative && (a.state == StatePatrol || a.state == StateFollow)
}

// IsChasing reports whether the guard is in Chase.
func (a *Agent) IsChasing() bool {
	return a.state == StateChase
}

// AlertEligible reports whether the coordinator may pull this guard into a chase.
func (a *Agent) AlertEligible() bool {
	return a.cfg.ChasePermitted && !a.navBackoff.Active() && (a.state == StatePatrol || a.state == StateFollow)
}

// Memory exposes the guard's memory entries.
func (a *Agent) Memory() *vision.Memory {
	return a.memory
}

// LastKnownPosition is where the target was last seen or reported.
func (a *Agent) LastKnownPosition() geom.Vec2 {
	return a.lastKnown
}

// Settled reports whether the guard is letting the current sighting go after a peaceful conversation.
// A fresh detection of the target clears it.
func (a *Agent) Settled() bool {
	return a.sees && !a.confirmed && !a.confirmTimer.Active()
}

// BackingOff reports whether a navigator failure is keeping the guard out of Chase.
func (a *Agent) BackingOff() bool {
	return a.navBackoff.Active()
}

// Provocations is the number of provoking choices seen in the current conversation.
func (a *Agent) Provocations() int {
	return a.provocations
}

// PlayerDetected is the sensor's false->true edge.
func (a *Agent) PlayerDetected(targetID string, pos geom.Vec2) {
	if targetID != a.cfg.TargetID {
		return
	}
	a.sees = true
	a.lastKnown = pos
	a.memory.Forget(targetID)
	if a.state == StateCaught {
		return
	}

	a.confirmTimer.Cancel()
	if a.cfg.ConfirmDelay <= 0 {
		a.confirmed = true
		return
	}
	a.confirmed = false
	a.confirmTimer = a.sched.After(a.cfg.ID, a.cfg.ConfirmDelay, func() {
		a.confirmed = a.sees
	})
}

// PlayerLost is the sensor's true->false edge. While chasing, the loss is remembered for MemoryDuration.
func (a *Agent) PlayerLost(targetID string, lastKnown geom.Vec2) {
	if targetID != a.cfg.TargetID {
		return
	}
	a.sees = false
	a.confirmed = false
	a.confirmTimer.Cancel()
	a.lastKnown = lastKnown
	if a.state == StateChase && a.cfg.MemoryDuration > 0 {
		a.memory.Remember(targetID, a.sched.Now()+a.cfg.MemoryDuration)
	}
}

// ConversationRequested is the sensor's conversation-radius trigger.
func (a *Agent) ConversationRequested(targetID string) {
	if targetID != a.cfg.TargetID || !a.ConversationEligible() {
		return
	}
	a.logger.Debug("Guard wants to talk", "target_id", targetID)
	if a.hooks.DialogueRequested != nil {
		a.hooks.DialogueRequested(a.cfg.ID, targetID)
	}
}

// StartChasing puts the guard in pursuit of the target's current position, e.g. after a trust breach.
func (a *Agent) StartChasing() error {
	if a.state == StateChase {
		return nil
	}
	if !a.cfg.ChasePermitted {
		return fmt.Errorf("%w: guard %q may not chase", fault.ErrInvalidTransition, a.cfg.ID)
	}
	a.report()
	return a.transition(StateChase)
}

// StopChasing abandons a chase.
func (a *Agent) StopChasing() error {
	if a.state != StateChase {
		return nil
	}
	return a.transition(StatePatrol)
}

// SharedAlert joins a chase another guard started, approaching via flank first.
func (a *Agent) SharedAlert(flank geom.Vec2) {
	if !a.AlertEligible() {
		return
	}
	a.report()
	if err := a.transition(StateChase); err != nil {
		return
	}
	a.flank = flank
	a.hasFlank = true
}

// report refreshes the last known position from the locator and remembers the target, as a summons or
// alert carries the target's whereabouts.
func (a *Agent) report() {
	if e, ok := a.locator.Locate(a.cfg.TargetID); ok {
		a.lastKnown = e.Pos
	}
	if a.cfg.MemoryDuration > 0 {
		a.memory.Remember(a.cfg.TargetID, a.sched.Now()+a.cfg.MemoryDuration)
	}
}

// Follow shadows the target from behind.
func (a *Agent) Follow() error {
	if a.state == StateFollow {
		return nil
	}
	return a.transition(StateFollow)
}

// Release ends a follow.
func (a *Agent) Release() error {
	if a.state != StateFollow {
		return nil
	}
	return a.transition(StatePatrol)
}

// BeginDialogue stops the guard and turns it toward the target.
func (a *Agent) BeginDialogue() error {
	return a.transition(StateDialogue)
}

// RecordChoice feeds a dialogue choice into the provocation counter and reports whether the conversation
// should break off into a chase right away.
func (a *Agent) RecordChoice(hostile, provokes bool) bool {
	if a.state != StateDialogue {
		return false
	}
	if hostile {
		a.hostileSeen = true
	}
	if provokes {
		a.provocations++
	}
	return a.hostileSeen || a.provocations > a.cfg.ProvocationThreshold
}

// DialogueEnd says how a guard conversation finished.
type DialogueEnd int

const (
	DialogueSettled   DialogueEnd = iota // the exchange ran to its end
	DialogueAbandoned                    // the player walked off or the session was closed
	DialogueHostile                      // forced hostile, e.g. the guard's trust broke
)

// EndDialogue resolves the conversation: Chase when hostile, after a hostile choice, or past the
// provocation threshold (and chasing is permitted); Patrol otherwise. A peaceful, settled exchange lets
// the current sighting go, so the guard only chases again after losing and re-detecting the target.
func (a *Agent) EndDialogue(how DialogueEnd) error {
	if a.state != StateDialogue {
		return fmt.Errorf("%w: guard %q is not in dialogue", fault.ErrInvalidTransition, a.cfg.ID)
	}
	escalate := how == DialogueHostile || a.hostileSeen || a.provocations > a.cfg.ProvocationThreshold
	if escalate && a.cfg.ChasePermitted {
		a.report()
		return a.transition(StateChase)
	}
	if !escalate && how == DialogueSettled {
		a.confirmTimer.Cancel()
		a.confirmTimer = nil
		a.confirmed = false
	}
	return a.transition(StatePatrol)
}

// RequestState commands an explicit transition. Illegal edges, such as Caught without a prior Chase, are
// rejected.
func (a *Agent) RequestState(to State) error {
	if to == a.state {
		return nil
	}
	return a.transition(to)
}

// Update evaluates the current state once. It runs after the sensors have polled this tick.
func (a *Agent) Update() {
	if v := a.nav.Velocity(); !v.IsZero() && a.state != StateDialogue {
		a.facing = v.Normalize()
	}

	switch a.state {
	case StatePatrol:
		if a.sees && a.confirmed && a.cfg.ChasePermitted && !a.navBackoff.Active() {
			_ = a.transition(StateChase)
			return
		}
		a.patrol()
	case StateFollow:
		a.follow()
	case StateChase:
		a.chase()
	}
}

func (a *Agent) patrol() {
	if a.waitTimer.Active() {
		return
	}
	wp := a.cfg.Route[a.waypoint]
	if a.nav.Position().Dist(wp.Pos) <= a.cfg.ArriveDistance {
		next := func() {
			a.waypoint = (a.waypoint + 1) % len(a.cfg.Route)
			a.moveTo(a.cfg.Route[a.waypoint].Pos)
		}
		if wp.Wait > 0 {
			a.waitTimer = a.sched.After(a.cfg.ID, wp.Wait, next)
			return
		}
		next()
		return
	}
	a.moveTo(wp.Pos)
}

func (a *Agent) follow() {
	target, ok := a.locator.Locate(a.cfg.TargetID)
	if !ok {
		return
	}
	back := target.Heading.Normalize().Scale(-1)
	if back.IsZero() {
		back = a.nav.Position().Sub(target.Pos).Normalize()
	}
	if err := a.moveTo(target.Pos.Add(back.Scale(a.cfg.FollowOffset))); err != nil {
		a.fallBack()
	}
}

func (a *Agent) chase() {
	now := a.sched.Now()
	tracked := a.sees || a.memory.Recall(a.cfg.TargetID, now)

	target, located := a.locator.Locate(a.cfg.TargetID)
	if located && a.nav.Position().Dist(target.Pos) <= a.cfg.CatchRadius {
		_ = a.transition(StateCaught)
		return
	}

	var dest geom.Vec2
	if tracked {
		a.graceTimer.Cancel()
		a.graceTimer = nil
		a.graceExpired = false
		if located {
			a.lastKnown = target.Pos
		}
		dest = a.lastKnown
	} else {
		if a.graceExpired {
			a.logger.Info("Chase abandoned, target lost", "target_id", a.cfg.TargetID)
			_ = a.transition(StatePatrol)
			return
		}
		if !a.graceTimer.Active() {
			a.graceTimer = a.sched.After(a.cfg.ID, a.cfg.ChaseGrace, func() {
				a.graceExpired = true
			})
		}
		dest = a.lastKnown
	}

	if a.hasFlank {
		if a.nav.Position().Dist(a.flank) <= a.cfg.ArriveDistance {
			a.hasFlank = false
		} else {
			dest = a.flank
		}
	}
	if err := a.moveTo(dest); err != nil {
		a.fallBack()
	}
}

// fallBack returns to Patrol after a navigator failure and keeps the guard from chasing for NavRetry.
func (a *Agent) fallBack() {
	a.navBackoff.Cancel()
	a.navBackoff = a.sched.After(a.cfg.ID, a.cfg.NavRetry, func() {})
	_ = a.transition(StatePatrol)
}

// moveTo issues a destination when it changed. Failures are logged once per streak.
func (a *Agent) moveTo(pos geom.Vec2) error {
	if a.hasDest && a.dest == pos && !a.navFailed {
		return nil
	}
	if err := a.nav.SetDestination(pos); err != nil {
		if !a.navFailed {
			a.logger.Warn("Navigator rejected destination", "state", a.state.String(), "error", err)
		}
		a.navFailed = true
		a.hasDest = false
		return err
	}
	a.navFailed = false
	a.dest = pos
	a.hasDest = true
	return nil
}

func (a *Agent) stop() {
	a.hasDest = false
	if err := a.nav.Stop(); err != nil {
		a.logger.Warn("Navigator failed to stop", "state", a.state.String(), "error", err)
	}
}

func (a *Agent) transition(to State) error {
	from := a.state
	if !CanTransition(from, to) {
		a.logger.Debug("Rejected guard transition", "from", from.String(), "to", to.String())
		return fmt.Errorf("%w: guard %q %s -> %s", fault.ErrInvalidTransition, a.cfg.ID, from, to)
	}

	a.exit(from)
	a.state = to
	a.logger.Info("Guard state changed", "from", from.String(), "to", to.String())
	a.enter(to)

	if a.hooks.StateChanged != nil {
		a.hooks.StateChanged(a.cfg.ID, to)
	}
	if to == StateCaught && a.hooks.PlayerCaught != nil {
		a.hooks.PlayerCaught(a.cfg.ID)
	}
	return nil
}

func (a *Agent) exit(from State) {
	switch from {
	case StatePatrol:
		a.waitTimer.Cancel()
		a.waitTimer = nil
	case StateChase:
		a.graceTimer.Cancel()
		a.graceTimer = nil
		a.graceExpired = false
		a.hasFlank = false
	}
}

func (a *Agent) enter(to State) {
	a.hasDest = false
	switch to {
	case StatePatrol:
		a.nav.SetSpeed(a.cfg.PatrolSpeed)
		a.moveTo(a.cfg.Route[a.waypoint].Pos)
	case StateFollow:
		a.nav.SetSpeed(a.cfg.FollowSpeed)
	case StateChase:
		a.nav.SetSpeed(a.cfg.ChaseSpeed)
	case StateDialogue:
		a.stop()
		a.hostileSeen = false
		a.provocations = 0
		if target, ok := a.locator.Locate(a.cfg.TargetID); ok {
			if dir := target.Pos.Sub(a.nav.Position()).Normalize(); !dir.IsZero() {
				a.facing = dir
			}
		}
	case StateCaught:
		a.stop()
		a.sched.CancelOwner(a.cfg.ID)
		a.confirmTimer = nil
		a.navBackoff = nil
		a.memory.Clear()
	}
}
