package pipeline

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidTransition reports a state change the run's state machine does
// not allow. It indicates a programming error.
var ErrInvalidTransition = errors.New("invalid state transition")

// State is a pipeline run state.
type State string

const (
	Received    State = "Received"
	Acquiring   State = "Acquiring"
	Classifying State = "Classifying"
	Extracting  State = "Extracting"
	Rendering   State = "Rendering"
	Persisted   State = "Persisted"
	Failed      State = "Failed"
)

var sequence = []State{Received, Acquiring, Classifying, Extracting, Rendering, Persisted}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == Persisted || s == Failed
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	return s == Failed || slices.Contains(sequence, s)
}

// CanTransition reports whether a run may move from one state to another:
// forward to the next state in sequence, or to Failed from any non-terminal
// state.
func CanTransition(from, to State) bool {
	if !from.Valid() || from.Terminal() {
		return false
	}
	if to == Failed {
		return true
	}
	i := slices.Index(sequence, from)
	return i+1 < len(sequence) && sequence[i+1] == to
}

func (r *Run) transition(to State) error {
	if !CanTransition(r.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.State, to)
	}
	r.State = to
	return nil
}
