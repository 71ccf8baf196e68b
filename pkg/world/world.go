// Package world wires the simulation core into one encounter: trust ledgers and the dialogue engine, the
// guards with their sensors, and the coordinator, all driven by one scheduler from Tick.
//
// A World is single-threaded. Callers that drive it from several goroutines (an HTTP handler and a tick
// loop, say) must serialize access themselves.
package world

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/jwebster45206/stealth-engine/pkg/actor"
	"github.com/jwebster45206/stealth-engine/pkg/coordinator"
	"github.com/jwebster45206/stealth-engine/pkg/dialogue"
	"github.com/jwebster45206/stealth-engine/pkg/fault"
	"github.com/jwebster45206/stealth-engine/pkg/geom"
	"github.com/jwebster45206/stealth-engine/pkg/guard"
	"github.com/jwebster45206/stealth-engine/pkg/scenario"
	"github.com/jwebster45206/stealth-engine/pkg/sched"
	"github.com/jwebster45206/stealth-engine/pkg/trust"
	"github.com/jwebster45206/stealth-engine/pkg/vision"
)

// DefaultFollowDuration is how long a guard shadows the player after a lukewarm conversation.
const DefaultFollowDuration = 20 * time.Second

// Player is the controllable target.
type Player interface {
	Position() geom.Vec2
	SetSpeedMultiplier(m float64)
	Freeze()
}

// Stepper is implemented by collaborators that integrate their own movement each tick.
type Stepper interface {
	Step(dt time.Duration)
}

// Deps are the external services the encounter runs against.
type Deps struct {
	Spatial    vision.Spatial
	Navigators map[string]guard.Navigator
	Presenter  dialogue.Presenter
	Player     Player
}

// Hooks receive encounter outcomes. Any field may be nil.
type Hooks struct {
	TrustChanged      func(npcID string, value int)
	EndingSelected    func(npcID string, tier trust.Tier)
	SessionEnded      func(npcID string, reason dialogue.EndReason)
	GuardStateChanged func(guardID string, state guard.State)
	PlayerDetected    func(guardID string)
	PlayerCaught      func(guardID string)
	Escalated         func(npcID, guardID string)
	AlarmChanged      func(alarmed bool)
}

type options struct {
	logger         *slog.Logger
	followDuration time.Duration
}

// Option configures a World.
type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithFollowDuration sets how long a guard follows the player after a mid-trust ending.
func WithFollowDuration(d time.Duration) Option {
	return func(o *options) { o.followDuration = d }
}

type guardUnit struct {
	def     actor.Guard
	agent   *guard.Agent
	sensor  *vision.Sensor
	nav     guard.Navigator
	release *sched.Timer // ends a follow
}

// World is one running encounter.
type World struct {
	scn       *scenario.Scenario
	sched     *sched.Scheduler
	book      *trust.Book
	engine    *dialogue.Engine
	coord     *coordinator.Coordinator
	spatial   vision.Spatial
	player    Player
	presenter dialogue.Presenter
	hooks     Hooks
	opts      options
	logger    *slog.Logger

	npcs     map[string]actor.NPC
	npcOrder []string
	guards   map[string]*guardUnit
	order    []string
	disabled map[string][]error
	steppers []Stepper

	inRange  map[string]bool
	caught   bool
	caughtBy string
	ticks    uint64
}

// New builds the encounter. Entities with configuration problems are logged and left out; the encounter
// runs without them. Missing dependencies and scenario-wide problems are returned as errors.
func New(scn *scenario.Scenario, deps Deps, hooks Hooks, opts ...Option) (*World, error) {
	o := options{logger: slog.Default(), followDuration: DefaultFollowDuration}
	for _, opt := range opts {
		opt(&o)
	}
	if scn == nil || deps.Spatial == nil || deps.Player == nil {
		return nil, fmt.Errorf("%w: world needs a scenario, a spatial service and a player", fault.ErrConfiguration)
	}
	if deps.Presenter == nil {
		deps.Presenter = dialogue.NopPresenter{}
	}

	problems := scenario.Problems(scn)
	if errs := problems[scenario.ScenarioKey]; len(errs) > 0 {
		return nil, fmt.Errorf("scenario %q: %w", scn.Name, errors.Join(errs...))
	}

	w := &World{
		scn:       scn,
		sched:     sched.New(),
		book:      trust.NewBook(),
		spatial:   deps.Spatial,
		player:    deps.Player,
		presenter: deps.Presenter,
		hooks:     hooks,
		opts:      o,
		logger:    o.logger,
		npcs:      make(map[string]actor.NPC),
		guards:    make(map[string]*guardUnit),
		disabled:  make(map[string][]error),
		inRange:   make(map[string]bool),
	}
	for id, errs := range problems {
		if id != scenario.ScenarioKey {
			w.disable(id, errs...)
		}
	}

	w.engine = dialogue.NewEngine(scn.Dialogue.EngineConfig(), w.sched, w.book, w.presenter, dialogue.Hooks{
		ChoiceApplied:  w.onChoiceApplied,
		SessionEnded:   w.onSessionEnded,
		EndingSelected: w.onEndingSelected,
		Escalated:      w.onEscalated,
	}, w.logger)
	w.coord = coordinator.New(scn.Coordinator, coordinator.Hooks{AlarmChanged: w.onAlarmChanged}, w.logger)

	if s, ok := deps.Player.(Stepper); ok {
		w.steppers = append(w.steppers, s)
	}

	for _, n := range scn.NPCs {
		if w.isDisabled(n.ID) {
			continue
		}
		if err := w.addConversation(n.ID, n.Score(), n.StepDelay(), n.Script()); err != nil {
			w.disable(n.ID, err)
			continue
		}
		w.npcs[n.ID] = n
		w.npcOrder = append(w.npcOrder, n.ID)
	}

	for _, g := range scn.Guards {
		if w.isDisabled(g.ID) {
			continue
		}
		if err := w.addGuard(g, deps.Navigators[g.ID]); err != nil {
			w.disable(g.ID, err)
		}
	}

	w.logger.Info("Encounter ready",
		"scenario", scn.Name,
		"npcs", len(w.npcs),
		"guards", len(w.guards),
		"disabled", len(w.disabled))
	return w, nil
}

func (w *World) addConversation(id string, score trust.Score, stepDelay time.Duration, script dialogue.Script) error {
	ledger, err := trust.NewLedger(id, score, w.sched, stepDelay, w.logger)
	if err != nil {
		return err
	}
	if err := w.book.Add(ledger); err != nil {
		return err
	}
	ledger.Observe(trustRelay{w})
	return w.engine.Register(&script)
}

func (w *World) addGuard(def actor.Guard, nav guard.Navigator) error {
	if nav == nil {
		return fmt.Errorf("%w: guard %q has no navigator", fault.ErrConfiguration, def.ID)
	}
	agent, err := guard.New(def.AgentConfig(w.scn.PlayerID), nav, w.spatial, w.sched, guard.Hooks{
		StateChanged:      w.onGuardStateChanged,
		PlayerCaught:      w.onPlayerCaught,
		DialogueRequested: w.onGuardWantsToTalk,
	}, w.logger)
	if err != nil {
		return err
	}
	if def.Talkative() {
		t := def.TrustSpec()
		if err := w.addConversation(def.ID, t.Score(), t.StepDelay.Duration(), def.Dialogue.Script(def.ID, def.DisplayName())); err != nil {
			return err
		}
	}

	u := &guardUnit{def: def, agent: agent, nav: nav}
	u.sensor = vision.NewSensor(def.ID, def.VisionConfig(), w.scn.PlayerID, w.spatial, agent, sensorRelay{w: w, agent: agent}, w.logger)
	w.guards[def.ID] = u
	w.order = append(w.order, def.ID)
	if s, ok := nav.(Stepper); ok {
		w.steppers = append(w.steppers, s)
	}
	return nil
}

func (w *World) disable(id string, errs ...error) {
	w.disabled[id] = append(w.disabled[id], errs...)
	w.logger.Error("Entity disabled by configuration error", "entity_id", id, "error", errors.Join(errs...))
}

func (w *World) isDisabled(id string) bool {
	_, ok := w.disabled[id]
	return ok
}

// Tick advances the encounter by dt: movement, then timers, sensor polls, guard state machines, the
// coordinator pass and finally the dialogue countdown display.
func (w *World) Tick(dt time.Duration) {
	if dt < 0 {
		dt = 0
	}
	w.ticks++
	if !w.caught {
		for _, s := range w.steppers {
			s.Step(dt)
		}
	}
	w.sched.Advance(dt)

	if !w.caught {
		now := w.sched.Now()
		for _, id := range w.order {
			w.guards[id].sensor.Update(now)
		}
		for _, id := range w.order {
			w.guards[id].agent.Update()
		}
		w.coord.Update(w.members(), w.player.Position(), w.player)
		w.updateRanges()
	}
	w.engine.Tick()
}

func (w *World) members() []coordinator.Member {
	out := make([]coordinator.Member, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, w.guards[id].agent)
	}
	return out
}

// updateRanges raises range enter/exit for NPCs (interaction radius) and talkative guards (conversation
// radius).
func (w *World) updateRanges() {
	pos := w.player.Position()
	for _, id := range w.npcOrder {
		n := w.npcs[id]
		w.setInRange(id, pos.Dist(n.Position) <= n.InteractionRadius)
	}
	for _, id := range w.order {
		u := w.guards[id]
		if !u.def.Talkative() {
			continue
		}
		w.setInRange(id, pos.Dist(u.agent.Position()) <= u.def.Vision.ConversationRadius)
	}
}

func (w *World) setInRange(id string, in bool) {
	if in == w.inRange[id] {
		return
	}
	if in {
		w.RangeEntered(id)
	} else {
		w.RangeExited(id)
	}
}

// RangeEntered records that the player came within talking range of id.
func (w *World) RangeEntered(id string) {
	w.inRange[id] = true
}

// RangeExited records that the player left id's range: any conversation with it ends and it may be engaged
// again later, unless sealed.
func (w *World) RangeExited(id string) {
	w.inRange[id] = false
	w.engine.EndSession(id)
	w.engine.ReleaseLatch(id)
}

// Interact opens a conversation with the nearest NPC in range.
func (w *World) Interact() (dialogue.Session, error) {
	if w.caught {
		return dialogue.Session{}, fmt.Errorf("%w: player has been caught", fault.ErrInvalidTransition)
	}
	pos := w.player.Position()
	best, bestDist := "", math.Inf(1)
	for _, id := range w.npcOrder {
		if !w.inRange[id] {
			continue
		}
		if d := pos.Dist(w.npcs[id].Position); d < bestDist {
			best, bestDist = id, d
		}
	}
	if best == "" {
		return dialogue.Session{}, fmt.Errorf("%w: nobody in range to talk to", fault.ErrInvalidTransition)
	}
	return w.StartSession(best)
}

// StartSession opens a conversation with an NPC.
func (w *World) StartSession(npcID string) (dialogue.Session, error) {
	if w.caught {
		return dialogue.Session{}, fmt.Errorf("%w: player has been caught", fault.ErrInvalidTransition)
	}
	if _, ok := w.guards[npcID]; ok {
		return dialogue.Session{}, fmt.Errorf("%w: guards start their own conversations", fault.ErrInvalidTransition)
	}
	return w.engine.StartSession(npcID)
}

// EndSession ends npcID's conversation without an ending. A no-op when none is active.
func (w *World) EndSession(npcID string) {
	w.engine.EndSession(npcID)
}

func (w *World) IsSessionActive(npcID string) bool {
	return w.engine.IsSessionActive(npcID)
}

// ActiveSession returns the conversation in progress, if any.
func (w *World) ActiveSession() (dialogue.Session, bool) {
	ids := w.engine.ActiveSessions()
	if len(ids) == 0 {
		return dialogue.Session{}, false
	}
	return w.engine.Session(ids[0])
}

// Choose answers the current layer of npcID's conversation.
func (w *World) Choose(npcID string, index int) error {
	return w.engine.Choose(npcID, index)
}

// EvaluateGlobalTrustGate reports whether at least requiredCount NPCs have trust >= threshold.
func (w *World) EvaluateGlobalTrustGate(requiredCount, threshold int) bool {
	return w.book.EvaluateGlobalTrustGate(requiredCount, threshold)
}

// GateOpen evaluates the scenario's trust gate. Scenarios without one are never gated open.
func (w *World) GateOpen() bool {
	g := w.scn.TrustGate
	return g != nil && w.EvaluateGlobalTrustGate(g.Required, g.Threshold)
}

func (w *World) Alarmed() bool {
	return w.coord.Alarmed()
}

func (w *World) GuardState(guardID string) (guard.State, bool) {
	u, ok := w.guards[guardID]
	if !ok {
		return guard.StatePatrol, false
	}
	return u.agent.State(), true
}

// Trust returns an NPC's current score.
func (w *World) Trust(npcID string) (trust.Score, bool) {
	l, ok := w.book.Get(npcID)
	if !ok {
		return trust.Score{}, false
	}
	return l.Score(), true
}

// Caught reports whether the encounter ended in capture, and by whom.
func (w *World) Caught() (bool, string) {
	return w.caught, w.caughtBy
}

// Disabled returns the entities left out at startup and why.
func (w *World) Disabled() map[string][]error {
	out := make(map[string][]error, len(w.disabled))
	for id, errs := range w.disabled {
		out[id] = append([]error(nil), errs...)
	}
	return out
}

func (w *World) Now() time.Duration {
	return w.sched.Now()
}

func (w *World) Ticks() uint64 {
	return w.ticks
}

func (w *World) Scenario() *scenario.Scenario {
	return w.scn
}

// summon picks the guard answering a call from npcID: the NPC's assigned guard when it can respond,
// otherwise the nearest guard that can.
func (w *World) summon(npcID string) *guardUnit {
	n := w.npcs[npcID]
	if u, ok := w.guards[n.Guard]; ok && (u.agent.AlertEligible() || u.agent.IsChasing()) {
		return u
	}
	var best *guardUnit
	bestDist := math.Inf(1)
	for _, id := range w.order {
		u := w.guards[id]
		if !u.agent.AlertEligible() {
			continue
		}
		if d := u.agent.Position().Dist(n.Position); d < bestDist {
			best, bestDist = u, d
		}
	}
	return best
}

func (w *World) onChoiceApplied(npcID string, c dialogue.Choice, timedOut bool) {
	u, ok := w.guards[npcID]
	if !ok || u.agent.State() != guard.StateDialogue {
		return
	}
	if u.agent.RecordChoice(c.Hostile, c.Provokes) {
		w.logger.Info("Guard provoked, breaking off conversation", "guard_id", npcID, "choice", c.Label)
		w.engine.EndSession(npcID)
	}
}

func (w *World) onSessionEnded(npcID string, reason dialogue.EndReason) {
	if u, ok := w.guards[npcID]; ok && u.agent.State() == guard.StateDialogue {
		if err := u.agent.EndDialogue(dialogueEnd(reason)); err != nil {
			w.logger.Warn("Failed to end guard dialogue", "guard_id", npcID, "error", err)
		}
	}
	if w.hooks.SessionEnded != nil {
		w.hooks.SessionEnded(npcID, reason)
	}
}

func dialogueEnd(reason dialogue.EndReason) guard.DialogueEnd {
	switch reason {
	case dialogue.EndCompleted:
		return guard.DialogueSettled
	case dialogue.EndEscalated:
		return guard.DialogueHostile
	default:
		return guard.DialogueAbandoned
	}
}

func (w *World) onEndingSelected(npcID string, tier trust.Tier) {
	if w.hooks.EndingSelected != nil {
		w.hooks.EndingSelected(npcID, tier)
	}
	if _, isGuard := w.guards[npcID]; isGuard {
		return
	}
	switch tier {
	case trust.TierHostile:
		w.escalate(npcID)
	case trust.TierMid:
		u := w.summon(npcID)
		if u == nil {
			return
		}
		if err := u.agent.Follow(); err != nil {
			w.logger.Warn("Guard could not follow", "guard_id", u.def.ID, "error", err)
			return
		}
		w.logger.Info("Guard told to keep an eye on the player", "npc_id", npcID, "guard_id", u.def.ID)
		agent := u.agent
		u.release.Cancel()
		u.release = w.sched.After(u.def.ID, w.opts.followDuration, func() {
			_ = agent.Release()
		})
	}
}

func (w *World) onEscalated(npcID string, value int) {
	if u, ok := w.guards[npcID]; ok {
		// A guard whose own trust breaks needs no summons.
		if u.agent.State() == guard.StateDialogue {
			_ = u.agent.EndDialogue(guard.DialogueHostile)
		} else if err := u.agent.StartChasing(); err != nil {
			w.logger.Warn("Guard could not give chase", "guard_id", npcID, "error", err)
		}
		if w.hooks.Escalated != nil {
			w.hooks.Escalated(npcID, npcID)
		}
		return
	}
	w.escalate(npcID)
}

func (w *World) escalate(npcID string) {
	u := w.summon(npcID)
	if u == nil {
		w.logger.Warn("Escalation with no guard available", "npc_id", npcID)
		return
	}
	if err := u.agent.StartChasing(); err != nil {
		w.logger.Warn("Summoned guard could not give chase", "npc_id", npcID, "guard_id", u.def.ID, "error", err)
		return
	}
	w.logger.Info("Guard summoned", "npc_id", npcID, "guard_id", u.def.ID)
	if w.hooks.Escalated != nil {
		w.hooks.Escalated(npcID, u.def.ID)
	}
}

func (w *World) onGuardWantsToTalk(guardID, _ string) {
	if w.caught || len(w.engine.ActiveSessions()) > 0 {
		return
	}
	if _, err := w.engine.StartSession(guardID); err != nil {
		w.logger.Debug("Guard conversation not started", "guard_id", guardID, "error", err)
		return
	}
	if err := w.guards[guardID].agent.BeginDialogue(); err != nil {
		w.logger.Warn("Guard could not enter dialogue", "guard_id", guardID, "error", err)
		w.engine.EndSession(guardID)
	}
}

func (w *World) onGuardStateChanged(guardID string, state guard.State) {
	if w.hooks.GuardStateChanged != nil {
		w.hooks.GuardStateChanged(guardID, state)
	}
}

func (w *World) onPlayerCaught(guardID string) {
	if w.caught {
		return
	}
	w.caught = true
	w.caughtBy = guardID
	w.player.Freeze()
	for _, id := range w.engine.ActiveSessions() {
		w.engine.EndSession(id)
	}
	w.presenter.ShowCaughtOverlay()
	w.logger.Warn("Player caught", "guard_id", guardID)
	if w.hooks.PlayerCaught != nil {
		w.hooks.PlayerCaught(guardID)
	}
}

func (w *World) onAlarmChanged(alarmed bool) {
	if w.hooks.AlarmChanged != nil {
		w.hooks.AlarmChanged(alarmed)
	}
}

type trustRelay struct {
	w *World
}

func (r trustRelay) TrustChanged(npcID string, value int) {
	if r.w.hooks.TrustChanged != nil {
		r.w.hooks.TrustChanged(npcID, value)
	}
}

func (trustRelay) TrustBreached(string, int) {}

// sensorRelay forwards sensor edges to the guard and reports detections.
type sensorRelay struct {
	w     *World
	agent *guard.Agent
}

func (r sensorRelay) PlayerDetected(targetID string, pos geom.Vec2) {
	r.agent.PlayerDetected(targetID, pos)
	if r.w.hooks.PlayerDetected != nil {
		r.w.hooks.PlayerDetected(r.agent.ID())
	}
}

func (r sensorRelay) PlayerLost(targetID string, lastKnown geom.Vec2) {
	r.agent.PlayerLost(targetID, lastKnown)
}

func (r sensorRelay) ConversationRequested(targetID string) {
	r.agent.ConversationRequested(targetID)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
