package session

import (
	"errors"
	"fmt"
)

// State is a session lifecycle state.
type State int

// Lifecycle: Idle -> Loading -> Ready -> Tracking -> Stopped. A failed
// Setup returns to Idle. Stop is accepted from any state.
const (
	Idle State = iota
	Loading
	Ready
	Tracking
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Tracking:
		return "tracking"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrInvalidState is returned when an operation is not allowed in the
// session's current state.
var ErrInvalidState = errors.New("session: invalid state")

func invalid(op string, s State) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidState, op, s)
}
