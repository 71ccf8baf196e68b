package dialogue

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jwebster45206/stealth-engine/pkg/fault"
	"github.com/jwebster45206/stealth-engine/pkg/sched"
	"github.com/jwebster45206/stealth-engine/pkg/trust"
)

// State is the phase of the current layer.
type State int

const (
	StateNPCTurn State = iota
	StatePlayerTurn
	StateResolving
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateNPCTurn:
		return "npc_turn"
	case StatePlayerTurn:
		return "player_turn"
	case StateResolving:
		return "resolving"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for st := StateNPCTurn; st <= StateEnded; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown dialogue state %q", b)
}

// EndReason says why a session ended.
type EndReason int

const (
	EndCompleted EndReason = iota // every layer played; an ending tier was selected
	EndExternal                   // player left range or the session was forced closed
	EndEscalated                  // trust breached the low threshold mid-conversation
)

func (r EndReason) String() string {
	switch r {
	case EndCompleted:
		return "completed"
	case EndExternal:
		return "external"
	case EndEscalated:
		return "escalated"
	default:
		return "unknown"
	}
}

// DefaultTurnTime is the countdown per layer when a script does not set one.
const DefaultTurnTime = 20 * time.Second

// Config holds engine-wide timings.
type Config struct {
	// CharDelay is the typewriter reveal time per rune of an NPC line.
	CharDelay time.Duration
	// LinePause is added after the line is fully revealed, before choices appear.
	LinePause        time.Duration
	ReactionDuration time.Duration
	DefaultTurnTime  time.Duration
	Reactions        Reactions
	Seed             uint64
}

// DefaultConfig returns the timings used by the sample scenarios.
func DefaultConfig() Config {
	return Config{
		CharDelay:        30 * time.Millisecond,
		LinePause:        500 * time.Millisecond,
		ReactionDuration: 1500 * time.Millisecond,
		DefaultTurnTime:  DefaultTurnTime,
		Reactions:        DefaultReactions,
		Seed:             1,
	}
}

// Session is one conversation with one NPC. At most one is active per NPC.
type Session struct {
	ID         uuid.UUID     `json:"id"`
	NPCID      string        `json:"npc_id"`
	LayerIndex int           `json:"layer_index"`
	MaxLayers  int           `json:"max_layers"`
	State      State         `json:"state"`
	StartedAt  time.Duration `json:"started_at"`
	TurnMax    time.Duration `json:"turn_max"`

	branchLine string
	turnTimer  *sched.Timer
}

// Hooks receive engine outcomes. Any field may be nil.
type Hooks struct {
	ChoiceApplied  func(npcID string, c Choice, timedOut bool)
	SessionEnded   func(npcID string, reason EndReason)
	EndingSelected func(npcID string, tier trust.Tier)
	Escalated      func(npcID string, value int)
}

type latch struct {
	closed bool
	sealed bool
}

// Engine runs every NPC conversation. It is driven by the scheduler and is not safe for concurrent use.
type Engine struct {
	cfg       Config
	sched     *sched.Scheduler
	book      *trust.Book
	presenter Presenter
	hooks     Hooks
	scripts   map[string]*Script
	sessions  map[string]*Session
	latches   map[string]latch
	rng       *rand.Rand
	logger    *slog.Logger
}

func NewEngine(cfg Config, s *sched.Scheduler, book *trust.Book, p Presenter, hooks Hooks, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if p == nil {
		p = NopPresenter{}
	}
	if cfg.DefaultTurnTime <= 0 {
		cfg.DefaultTurnTime = DefaultTurnTime
	}
	if len(cfg.Reactions.Positive)+len(cfg.Reactions.Negative)+len(cfg.Reactions.Neutral) == 0 {
		cfg.Reactions = DefaultReactions
	}
	return &Engine{
		cfg:       cfg,
		sched:     s,
		book:      book,
		presenter: p,
		hooks:     hooks,
		scripts:   make(map[string]*Script),
		sessions:  make(map[string]*Session),
		latches:   make(map[string]latch),
		rng:       rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		logger:    logger,
	}
}

// Register adds an NPC's script. The NPC must already have a trust ledger in the book.
func (e *Engine) Register(script *Script) error {
	if err := script.Validate(); err != nil {
		return err
	}
	if _, exists := e.scripts[script.NPCID]; exists {
		return fmt.Errorf("%w: duplicate dialogue script for npc %q", fault.ErrConfiguration, script.NPCID)
	}
	ledger, ok := e.book.Get(script.NPCID)
	if !ok {
		return fmt.Errorf("%w: npc %q has a dialogue script but no trust ledger", fault.ErrConfiguration, script.NPCID)
	}
	if script.Speaker == "" {
		script.Speaker = script.NPCID
	}
	e.scripts[script.NPCID] = script
	ledger.Observe(e)
	return nil
}

// HasScript reports whether npcID can be talked to.
func (e *Engine) HasScript(npcID string) bool {
	_, ok := e.scripts[npcID]
	return ok
}

// StartSession opens a conversation. It fails if one is already active for the NPC or the engagement
// latch is closed.
func (e *Engine) StartSession(npcID string) (Session, error) {
	script, ok := e.scripts[npcID]
	if !ok {
		return Session{}, fmt.Errorf("%w: no dialogue script for npc %q", fault.ErrConfiguration, npcID)
	}
	if e.IsSessionActive(npcID) {
		e.logger.Debug("Rejected dialogue start, session already active", "npc_id", npcID)
		return Session{}, fmt.Errorf("%w: dialogue already active for npc %q", fault.ErrInvalidTransition, npcID)
	}

	if l := e.latches[npcID]; l.closed || l.sealed {
		e.logger.Debug("Rejected dialogue start, engagement latched",
			"npc_id", npcID,
			"sealed", l.sealed)
		return Session{}, fmt.Errorf("%w: engagement latched for npc %q", fault.ErrInvalidTransition, npcID)
	}

	// Stale continuations from a previous conversation must not leak into this one.
	e.sched.CancelOwner(owner(npcID))
	if ledger, ok := e.book.Get(npcID); ok {
		ledger.Flush()
	}

	s := &Session{
		ID:         uuid.New(),
		NPCID:      npcID,
		LayerIndex: 1,
		MaxLayers:  len(script.Layers),
		State:      StateNPCTurn,
		StartedAt:  e.sched.Now(),
	}
	e.sessions[npcID] = s
	e.latches[npcID] = latch{closed: true}

	e.logger.Info("Dialogue started",
		"npc_id", npcID,
		"session_id", s.ID.String(),
		"layers", s.MaxLayers)

	e.beginLayer(s)
	return *s, nil
}

// EndSession closes the NPC's conversation without evaluating an ending. A no-op if none is active.
func (e *Engine) EndSession(npcID string) {
	s, ok := e.sessions[npcID]
	if !ok || s.State == StateEnded {
		return
	}
	e.close(s, EndExternal)
}

// IsSessionActive reports whether npcID has a conversation in progress.
func (e *Engine) IsSessionActive(npcID string) bool {
	s, ok := e.sessions[npcID]
	return ok && s.State != StateEnded
}

// Session returns a copy of the NPC's latest session.
func (e *Engine) Session(npcID string) (Session, bool) {
	s, ok := e.sessions[npcID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// ActiveSessions lists NPCs with a conversation in progress, sorted.
func (e *Engine) ActiveSessions() []string {
	var ids []string
	for id, s := range e.sessions {
		if s.State != StateEnded {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Choose answers the current layer. Only legal during the player's turn.
func (e *Engine) Choose(npcID string, index int) error {
	s, ok := e.sessions[npcID]
	if !ok || s.State == StateEnded {
		return fmt.Errorf("%w: no active dialogue for npc %q", fault.ErrInvalidTransition, npcID)
	}
	if s.State != StatePlayerTurn {
		e.logger.Debug("Rejected choice outside player turn",
			"npc_id", npcID,
			"state", s.State.String())
		return fmt.Errorf("%w: npc %q dialogue is in %s", fault.ErrInvalidTransition, npcID, s.State)
	}
	layer := e.scripts[npcID].Layers[s.LayerIndex-1]
	if index < 0 || index >= len(layer.Choices) {
		return fmt.Errorf("%w: choice %d out of range for npc %q layer %d", fault.ErrInvalidTransition, index, npcID, s.LayerIndex)
	}
	s.turnTimer.Cancel()
	e.resolve(s, layer.Choices[index], false)
	return nil
}

// ReleaseLatch reopens engagement for npcID, typically when the player leaves interaction range.
// Sealed NPCs stay closed.
func (e *Engine) ReleaseLatch(npcID string) {
	if e.IsSessionActive(npcID) {
		return
	}
	l := e.latches[npcID]
	if l.sealed {
		return
	}
	l.closed = false
	e.latches[npcID] = l
}

// ResetLatch clears the latch and any seal.
func (e *Engine) ResetLatch(npcID string) {
	delete(e.latches, npcID)
}

// Latched reports whether a new session would be refused by the latch.
func (e *Engine) Latched(npcID string) bool {
	l := e.latches[npcID]
	return l.closed || l.sealed
}

// Tick refreshes countdown displays for open player turns.
func (e *Engine) Tick() {
	for _, id := range e.ActiveSessions() {
		s := e.sessions[id]
		if s.State == StatePlayerTurn {
			e.presenter.ShowTimer(s.turnTimer.Remaining(), s.TurnMax)
		}
	}
}

// TrustChanged implements trust.Observer.
func (e *Engine) TrustChanged(string, int) {}

// TrustBreached implements trust.Observer. A breach aborts the NPC's conversation immediately,
// preempting any remaining layers, and escalates.
func (e *Engine) TrustBreached(npcID string, value int) {
	l := e.latches[npcID]
	l.sealed = true
	e.latches[npcID] = l

	if s, ok := e.sessions[npcID]; ok && s.State != StateEnded {
		e.logger.Warn("Dialogue aborted by trust breach",
			"npc_id", npcID,
			"session_id", s.ID.String(),
			"layer", s.LayerIndex,
			"trust", value)
		e.close(s, EndEscalated)
	}
	if e.hooks.Escalated != nil {
		e.hooks.Escalated(npcID, value)
	}
}

func (e *Engine) beginLayer(s *Session) {
	script := e.scripts[s.NPCID]
	line := s.branchLine
	s.branchLine = ""
	if line == "" {
		line = script.Layers[s.LayerIndex-1].NPCLine
	}
	s.State = StateNPCTurn
	e.presenter.RenderLine(script.Speaker, line)

	reveal := time.Duration(utf8.RuneCountInString(line))*e.cfg.CharDelay + e.cfg.LinePause
	e.after(s, reveal, func() { e.openTurn(s) })
}

func (e *Engine) openTurn(s *Session) {
	script := e.scripts[s.NPCID]
	layer := script.Layers[s.LayerIndex-1]

	labels := make([]string, len(layer.Choices))
	for i, c := range layer.Choices {
		labels[i] = c.Label
	}

	turn := script.TurnTime
	if turn <= 0 {
		turn = e.cfg.DefaultTurnTime
	}
	s.State = StatePlayerTurn
	s.TurnMax = turn
	e.presenter.ShowChoices(labels)
	e.presenter.ShowTimer(turn, turn)

	s.turnTimer = e.sched.After(owner(s.NPCID), turn, func() {
		if !e.live(s) || s.State != StatePlayerTurn {
			return
		}
		e.logger.Debug("Dialogue turn timed out",
			"npc_id", s.NPCID,
			"layer", s.LayerIndex)
		e.resolve(s, script.Timeout, true)
	})
}

func (e *Engine) resolve(s *Session, c Choice, timedOut bool) {
	script := e.scripts[s.NPCID]
	s.State = StateResolving
	s.branchLine = c.NextNPCLine
	e.presenter.HideAll()

	delta := c.TrustDelta
	if !timedOut {
		delta += script.QuickBonus
	}

	e.logger.Debug("Dialogue choice resolved",
		"npc_id", s.NPCID,
		"layer", s.LayerIndex,
		"choice", c.Label,
		"delta", delta,
		"timed_out", timedOut)

	if e.hooks.ChoiceApplied != nil {
		e.hooks.ChoiceApplied(s.NPCID, c, timedOut)
	}

	ledger, ok := e.book.Get(s.NPCID)
	if delta == 0 || !ok {
		if e.live(s) {
			e.react(s, 0)
		}
		return
	}
	// The delta lands even when the choice hook has already closed the session.
	err := ledger.ApplyDelta(delta, func(r trust.Result) {
		if !e.live(s) {
			return
		}
		e.react(s, r.Requested)
	})
	if err != nil {
		e.logger.Error("Failed to apply trust delta", "npc_id", s.NPCID, "error", err)
		if e.live(s) {
			e.react(s, 0)
		}
	}
}

func (e *Engine) react(s *Session, delta int) {
	kind := ReactionNeutral
	switch {
	case delta > 0:
		kind = ReactionPositive
	case delta < 0:
		kind = ReactionNegative
	}
	e.presenter.PlayReactionCue(kind)
	if pool := e.cfg.Reactions.pool(kind); len(pool) > 0 {
		e.presenter.RenderLine(e.scripts[s.NPCID].Speaker, pool[e.rng.IntN(len(pool))])
	}
	e.after(s, e.cfg.ReactionDuration, func() { e.advance(s) })
}

func (e *Engine) advance(s *Session) {
	s.LayerIndex++
	if s.LayerIndex > s.MaxLayers {
		e.complete(s)
		return
	}
	e.beginLayer(s)
}

func (e *Engine) complete(s *Session) {
	script := e.scripts[s.NPCID]
	if !script.Repeatable {
		l := e.latches[s.NPCID]
		l.sealed = true
		e.latches[s.NPCID] = l
	}
	e.close(s, EndCompleted)

	ledger, ok := e.book.Get(s.NPCID)
	if !ok {
		return
	}
	tier := ledger.Score().Tier()
	e.logger.Info("Dialogue ending selected",
		"npc_id", s.NPCID,
		"tier", tier.String(),
		"trust", ledger.Score().Current)
	if e.hooks.EndingSelected != nil {
		e.hooks.EndingSelected(s.NPCID, tier)
	}
}

func (e *Engine) close(s *Session, reason EndReason) {
	s.State = StateEnded
	s.turnTimer.Cancel()
	e.sched.CancelOwner(owner(s.NPCID))
	e.presenter.HideAll()

	l := e.latches[s.NPCID]
	l.closed = true
	e.latches[s.NPCID] = l

	e.logger.Info("Dialogue ended",
		"npc_id", s.NPCID,
		"session_id", s.ID.String(),
		"reason", reason.String(),
		"layer", s.LayerIndex)

	if e.hooks.SessionEnded != nil {
		e.hooks.SessionEnded(s.NPCID, reason)
	}
}

// after runs fn once d has elapsed, provided the session is still live. A non-positive d runs fn now.
func (e *Engine) after(s *Session, d time.Duration, fn func()) {
	if d <= 0 {
		fn()
		return
	}
	e.sched.After(owner(s.NPCID), d, func() {
		if e.live(s) {
			fn()
		}
	})
}

func (e *Engine) live(s *Session) bool {
	return e.sessions[s.NPCID] == s && s.State != StateEnded
}

func owner(npcID string) string {
	return "dialogue:" + npcID
}
