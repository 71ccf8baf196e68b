package dialogue

import "time"

// ReactionKind is the generic flavor of an NPC's reaction to a choice.
type ReactionKind int

const (
	ReactionNeutral ReactionKind = iota
	ReactionPositive
	ReactionNegative
)

func (k ReactionKind) String() string {
	switch k {
	case ReactionPositive:
		return "positive"
	case ReactionNegative:
		return "negative"
	default:
		return "neutral"
	}
}

// Presenter is the presentation layer the engine drives. Rendering, audio and widgets live behind it.
type Presenter interface {
	RenderLine(speaker, text string)
	ShowChoices(labels []string)
	ShowTimer(remaining, max time.Duration)
	PlayReactionCue(kind ReactionKind)
	ShowCaughtOverlay()
	HideAll()
}

// NopPresenter discards everything.
type NopPresenter struct{}

func (NopPresenter) RenderLine(string, string) {}
func (NopPresenter) ShowChoices([]string) {}
func (NopPresenter) ShowTimer(time.Duration, time.Duration) {}
func (NopPresenter) PlayReactionCue(ReactionKind) {}
func (NopPresenter) ShowCaughtOverlay() {}
func (NopPresenter) HideAll() {}

// Reactions are the pools a generic reaction line is drawn from.
type Reactions struct {
	Positive []string `json:"positive" yaml:"positive"`
	Negative []string `json:"negative" yaml:"negative"`
	Neutral  []string `json:"neutral" yaml:"neutral"`
}

// DefaultReactions is used when a scenario does not supply its own pools.
var DefaultReactions = Reactions{
	Positive: []string{"They nod slowly.", "Their shoulders relax.", "A faint smile."},
	Negative: []string{"Their eyes narrow.", "They take a step back.", "A cold silence."},
	Neutral:  []string{"They wait.", "No reaction.", "They shrug."},
}

func (r Reactions) pool(kind ReactionKind) []string {
	switch kind {
	case ReactionPositive:
		return r.Positive
	case ReactionNegative:
		return r.Negative
	default:
		return r.Neutral
	}
}
