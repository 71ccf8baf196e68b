package main

import (
	"strings"
	"time"

	"github.com/jwebster45206/stealth-engine/pkg/dialogue"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type entryKind int

const (
	entryLine entryKind = iota
	entryCue
	entryNote
)

type entry struct {
	kind    entryKind
	speaker string
	text    string
}

// transcript is the console's presenter. The world calls it from Update, on the same goroutine that renders,
// so it needs no locking.
type transcript struct {
	entries   []entry
	choices   []string
	remaining time.Duration
	max       time.Duration
	caught    bool
}

var _ dialogue.Presenter = (*transcript)(nil)

var titleCaser = cases.Title(language.English)

func (t *transcript) RenderLine(speaker, text string) {
	t.entries = append(t.entries, entry{kind: entryLine, speaker: speaker, text: text})
}

func (t *transcript) ShowChoices(labels []string) {
	t.choices = append(t.choices[:0], labels...)
}

func (t *transcript) ShowTimer(remaining, max time.Duration) {
	t.remaining, t.max = remaining, max
}

func (t *transcript) PlayReactionCue(kind dialogue.ReactionKind) {
	t.entries = append(t.entries, entry{kind: entryCue, text: titleCaser.String(kind.String())})
}

func (t *transcript) ShowCaughtOverlay() {
	t.caught = true
}

func (t *transcript) HideAll() {
	t.choices = nil
	t.remaining, t.max = 0, 0
}

func (t *transcript) note(text string) {
	t.entries = append(t.entries, entry{kind: entryNote, text: text})
}

// plain renders the transcript without styling, for the clipboard.
func (t *transcript) plain() string {
	var b strings.Builder
	for _, e := range t.entries {
		switch e.kind {
		case entryLine:
			b.WriteString(e.speaker + ": " + e.text + "\n")
		case entryCue:
			b.WriteString("(" + e.text + ")\n")
		case entryNote:
			b.WriteString("-- " + e.text + "\n")
		}
	}
	return b.String()
}
