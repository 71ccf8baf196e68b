package sandbox

import (
	"log/slog"
	"time"

	"github.com/jwebster45206/stealth-engine/pkg/dialogue"
)

// Line is one rendered NPC line.
type Line struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Recorder is a presenter that keeps what it was asked to show. With a logger it also logs each call, which
// is how the headless runner narrates an encounter.
type Recorder struct {
	Lines       []Line
	Choices     []string
	Remaining   time.Duration
	Max         time.Duration
	Cues        []dialogue.ReactionKind
	CaughtShown bool
	Hides       int

	logger *slog.Logger
}

var _ dialogue.Presenter = (*Recorder)(nil)

func NewRecorder(logger *slog.Logger) *Recorder {
	return &Recorder{logger: logger}
}

func (r *Recorder) RenderLine(speaker, text string) {
	r.Lines = append(r.Lines, Line{Speaker: speaker, Text: text})
	if r.logger != nil {
		r.logger.Info("Line", "speaker", speaker, "text", text)
	}
}

func (r *Recorder) ShowChoices(labels []string) {
	r.Choices = append([]string(nil), labels...)
	if r.logger != nil {
		r.logger.Info("Choices", "labels", labels)
	}
}

func (r *Recorder) ShowTimer(remaining, max time.Duration) {
	r.Remaining, r.Max = remaining, max
}

func (r *Recorder) PlayReactionCue(kind dialogue.ReactionKind) {
	r.Cues = append(r.Cues, kind)
}

func (r *Recorder) ShowCaughtOverlay() {
	r.CaughtShown = true
	if r.logger != nil {
		r.logger.Warn("Caught")
	}
}

func (r *Recorder) HideAll() {
	r.Choices = nil
	r.Remaining, r.Max = 0, 0
	r.Hides++
}

// LastLine returns the most recent line, if any.
func (r *Recorder) LastLine() (Line, bool) {
	if len(r.Lines) == 0 {
		return Line{}, false
	}
	return r.Lines[len(r.Lines)-1], true
}
