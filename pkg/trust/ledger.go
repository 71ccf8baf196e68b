// Package trust holds the bounded per-NPC trust score and the ledger that mutates it.
package trust

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwebster45206/stealth-engine/pkg/fault"
	"github.com/jwebster45206/stealth-engine/pkg/sched"
)

// ErrZeroDelta is returned by ApplyDelta for a zero amount.
var ErrZeroDelta = errors.New("trust delta must be non-zero")

// Thresholds split the trust range into tiers.
type Thresholds struct {
	Low  int `json:"low" yaml:"low"`
	Mid  int `json:"mid" yaml:"mid"`
	High int `json:"high" yaml:"high"`
}

// Score is an NPC's current disposition toward the player. 0 <= Current <= Max always holds.
type Score struct {
	Current   int `json:"current"`
	Max       int `json:"max"`
	LastDelta int `json:"last_delta"`
	Thresholds
}

// Tier is the ending branch a score falls into.
type Tier int

const (
	TierHostile Tier = iota // at or below Low
	TierLow
	TierMid
	TierHigh
)

func (t Tier) String() string {
	switch t {
	case TierHostile:
		return "hostile"
	case TierLow:
		return "low"
	case TierMid:
		return "mid"
	case TierHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Tier evaluates the score against its thresholds.
func (s Score) Tier() Tier {
	switch {
	case s.Current >= s.High:
		return TierHigh
	case s.Current >= s.Mid:
		return TierMid
	case s.Current > s.Low:
		return TierLow
	default:
		return TierHostile
	}
}

// Observer is notified of every unit step and of a low-threshold breach.
type Observer interface {
	TrustChanged(npcID string, value int)
	TrustBreached(npcID string, value int)
}

// Result describes a completed delta application.
type Result struct {
	Requested int
	Applied   int // net change after clamping
	Final     int
	Breached  bool
}

type application struct {
	remaining int
	step      int
	result    Result
	done      func(Result)
	timer     *sched.Timer
}

// Ledger owns one NPC's Score. The score is only ever mutated through ApplyDelta.
type Ledger struct {
	npcID     string
	score     Score
	sched     *sched.Scheduler
	stepDelay time.Duration
	observers []Observer
	pending   *application
	logger    *slog.Logger
}

// NewLedger validates the thresholds and clamps the starting value into [0, Max].
// stepDelay is the pause between unit steps; zero applies every step synchronously.
func NewLedger(npcID string, score Score, s *sched.Scheduler, stepDelay time.Duration, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if score.Max <= 0 {
		return nil, fmt.Errorf("%w: npc %q trust max must be positive, got %d", fault.ErrConfiguration, npcID, score.Max)
	}
	t := score.Thresholds
	if t.Low < 0 || t.Low > t.Mid || t.Mid > t.High || t.High > score.Max {
		return nil, fmt.Errorf("%w: npc %q thresholds must satisfy 0 <= low <= mid <= high <= max (got %d/%d/%d, max %d)",
			fault.ErrConfiguration, npcID, t.Low, t.Mid, t.High, score.Max)
	}
	if stepDelay > 0 && s == nil {
		return nil, fmt.Errorf("%w: npc %q stepped trust needs a scheduler", fault.ErrConfiguration, npcID)
	}
	score.Current = clamp(score.Current, score.Max)
	return &Ledger{
		npcID:     npcID,
		score:     score,
		sched:     s,
		stepDelay: stepDelay,
		logger:    logger,
	}, nil
}

// NPCID returns the NPC this ledger belongs to.
func (l *Ledger) NPCID() string {
	return l.npcID
}

// Score returns a copy of the current score.
func (l *Ledger) Score() Score {
	return l.score
}

// InFlight reports whether a stepped delta is still being applied.
func (l *Ledger) InFlight() bool {
	return l.pending != nil
}

// Observe registers an observer for step and breach notifications.
func (l *Ledger) Observe(o Observer) {
	l.observers = append(l.observers, o)
}

// ApplyDelta applies amount as |amount| unit steps, re-clamping and re-checking the low threshold after
// each one, and calls done (if non-nil) once the last step has landed. A breach is reported to observers
// on the step that causes it, before any remaining steps.
func (l *Ledger) ApplyDelta(amount int, done func(Result)) error {
	if amount == 0 {
		return fmt.Errorf("%w (npc %q)", ErrZeroDelta, l.npcID)
	}
	l.Flush()

	step := 1
	remaining := amount
	if amount < 0 {
		step = -1
		remaining = -amount
	}
	app := &application{
		remaining: remaining,
		step:      step,
		result:    Result{Requested: amount},
		done:      done,
	}
	l.score.LastDelta = amount
	l.pending = app

	l.logger.Debug("Applying trust delta",
		"npc_id", l.npcID,
		"delta", amount,
		"from", l.score.Current)

	if l.stepDelay <= 0 {
		for app.remaining > 0 && l.pending == app {
			l.stepOnce(app)
		}
		l.finish(app)
		return nil
	}
	l.scheduleNext(app)
	return nil
}

// Flush lands every pending step of an in-flight delta immediately.
func (l *Ledger) Flush() {
	app := l.pending
	if app == nil {
		return
	}
	app.timer.Cancel()
	for app.remaining > 0 {
		l.stepOnce(app)
	}
	l.finish(app)
}

func (l *Ledger) scheduleNext(app *application) {
	app.timer = l.sched.After("trust:"+l.npcID, l.stepDelay, func() {
		if l.pending != app {
			return
		}
		l.stepOnce(app)
		if app.remaining > 0 {
			l.scheduleNext(app)
			return
		}
		l.finish(app)
	})
}

func (l *Ledger) stepOnce(app *application) {
	prev := l.score.Current
	next := clamp(prev+app.step, l.score.Max)
	app.remaining--
	if next == prev {
		return
	}
	l.score.Current = next
	app.result.Applied += next - prev

	for _, o := range l.observers {
		o.TrustChanged(l.npcID, next)
	}
	if prev > l.score.Low && next <= l.score.Low {
		app.result.Breached = true
		l.logger.Info("Trust fell to low threshold",
			"npc_id", l.npcID,
			"value", next,
			"low_threshold", l.score.Low,
			"steps_remaining", app.remaining)
		for _, o := range l.observers {
			o.TrustBreached(l.npcID, next)
		}
	}
}

func (l *Ledger) finish(app *application) {
	if l.pending != app {
		return
	}
	l.pending = nil
	app.result.Final = l.score.Current
	if app.done != nil {
		app.done(app.result)
	}
}

func clamp(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
