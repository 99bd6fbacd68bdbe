package session

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by the store for unknown or deleted session IDs.
var ErrNotFound = errors.New("session not found")

// ErrQueueFull is returned when a session's flush queue cannot accept
// another unit. The client must slow down and re-send the signal.
var ErrQueueFull = errors.New("flush queue full")

// InvalidTransitionError reports a client message that violates the
// session state machine. State is not mutated.
type InvalidTransitionError struct {
	From  State
	Event string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: %s not allowed in %s", e.Event, e.From)
}
