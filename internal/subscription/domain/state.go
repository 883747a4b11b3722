package domain

import "fmt"

// Event is a state-machine input. Side effects (trial computation,
// usage-log truncation, callbacks) belong to the caller, never to the
// transition itself.
type Event string

const (
	EventActivate Event = "activate"
	EventCancel   Event = "cancel"
	EventEnd      Event = "end"
)

// NextState returns the state reached by applying event to current.
// Any pair outside the allowed transition table yields
// ErrInvalidTransition and leaves the caller's state untouched.
func NextState(current State, event Event) (State, error) {
	switch event {
	case EventActivate:
		if current == StateInactive || current == StateCanceled {
			return StateActive, nil
		}
	case EventCancel:
		if current == StateActive {
			return StateCanceled, nil
		}
	case EventEnd:
		if current == StateCanceled {
			return StateEnded, nil
		}
	}
	return current, fmt.Errorf("%w: cannot %s from %s", ErrInvalidTransition, event, current)
}
