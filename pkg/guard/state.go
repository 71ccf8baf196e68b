// Package guard implements the guard finite state machine: patrol, follow, chase, dialogue and the terminal
// caught state.
package guard

import "slices"

// State is a guard's behavior state.
type State int

const (
	StatePatrol State = iota
	StateFollow
	StateChase
	StateDialogue
	StateCaught
)

func (s State) String() string {
	switch s {
	case StatePatrol:
		return "patrol"
	case StateFollow:
		return "follow"
	case StateChase:
		return "chase"
	case StateDialogue:
		return "dialogue"
	case StateCaught:
		return "caught"
	default:
		return "unknown"
	}
}

// ParseState is the inverse of String.
func ParseState(s string) (State, bool) {
	for st := StatePatrol; st <= StateCaught; st++ {
		if st.String() == s {
			return st, true
		}
	}
	return StatePatrol, false
}

var transitions = map[State][]State{
	StatePatrol:   {StateFollow, StateChase, StateDialogue},
	StateFollow:   {StatePatrol, StateChase, StateDialogue},
	StateChase:    {StatePatrol, StateCaught},
	StateDialogue: {StatePatrol, StateChase},
	StateCaught:   nil,
}

// CanTransition reports whether from -> to is a legal edge. Caught is reachable only from Chase and is
// terminal.
func CanTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}
