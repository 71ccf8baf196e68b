package trust

import (
	"fmt"
	"sort"

	"github.com/jwebster45206/stealth-engine/pkg/fault"
)

// Book is the registry of every NPC's ledger.
type Book struct {
	ledgers map[string]*Ledger
}

func NewBook() *Book {
	return &Book{ledgers: make(map[string]*Ledger)}
}

// Add registers a ledger. Registering the same NPC twice is a configuration error.
func (b *Book) Add(l *Ledger) error {
	if _, exists := b.ledgers[l.npcID]; exists {
		return fmt.Errorf("%w: duplicate trust ledger for npc %q", fault.ErrConfiguration, l.npcID)
	}
	b.ledgers[l.npcID] = l
	return nil
}

func (b *Book) Get(npcID string) (*Ledger, bool) {
	l, ok := b.ledgers[npcID]
	return l, ok
}

// IDs returns the registered NPC IDs in sorted order.
func (b *Book) IDs() []string {
	ids := make([]string, 0, len(b.ledgers))
	for id := range b.ledgers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot copies every score.
func (b *Book) Snapshot() map[string]Score {
	out := make(map[string]Score, len(b.ledgers))
	for id, l := range b.ledgers {
		out[id] = l.score
	}
	return out
}

// EvaluateGlobalTrustGate reports whether at least requiredCount NPCs have trust >= threshold.
// Used to unlock content gated on N-of-M NPCs.
func (b *Book) EvaluateGlobalTrustGate(requiredCount, threshold int) bool {
	if requiredCount <= 0 {
		return true
	}
	n := 0
	for _, l := range b.ledgers {
		if l.score.Current >= threshold {
			n++
			if n >= requiredCount {
				return true
			}
		}
	}
	return false
}
