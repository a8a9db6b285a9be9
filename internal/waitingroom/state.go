package waitingroom

import "fmt"

// GuestState is the admission state of one guest.
type GuestState int

const (
	StateRequested GuestState = iota + 1
	StateApproved
	StateRejected
	StateRemoved
)

func (s GuestState) String() string {
	switch s {
	case StateRequested:
		return "requested"
	case StateApproved:
		return "approved"
	case StateRejected:
		return "rejected"
	case StateRemoved:
		return "removed"
	}
	return fmt.Sprintf("GuestState(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s GuestState) Terminal() bool {
	return s == StateApproved || s == StateRejected || s == StateRemoved
}

// Transition moves a guest from one state to the next. Only a requested guest can
// be approved, rejected or removed.
func Transition(from, to GuestState) (GuestState, error) {
	if from != StateRequested || !to.Terminal() {
		return from, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return to, nil
}
