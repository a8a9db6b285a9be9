package presentation

import "fmt"

// State is the lifecycle state of a presentation.
type State int

const (
	StateActive State = iota + 1
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateFinished:
		return "finished"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Transition allows only active -> finished.
func Transition(from, to State) (State, error) {
	if from != StateActive || to != StateFinished {
		return from, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return to, nil
}
