package session

import "fmt"

// State is the lifecycle state of a streaming encounter session.
type State int

const (
	// StateOpen - session created, no message received yet.
	StateOpen State = iota
	// StateAccumulating - ready to receive audio chunks.
	StateAccumulating
	// StateFlushing - at least one flush unit is in the transcription queue.
	// Chunk appends are still allowed and build the next unit.
	StateFlushing
	// StateFinalizing - end signal received, summarization in flight.
	StateFinalizing
	// StateClosed - terminal; the session is deleted from the store.
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateAccumulating:
		return "ACCUMULATING"
	case StateFlushing:
		return "FLUSHING"
	case StateFinalizing:
		return "FINALIZING"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// IsTerminal returns true once the session can accept no further messages.
func (s State) IsTerminal() bool {
	return s == StateClosed
}

// canAppend reports whether an audio chunk may be accepted in this state.
// Appends during FLUSHING accumulate into a fresh buffer for the next unit.
func (s State) canAppend() bool {
	return s == StateOpen || s == StateAccumulating || s == StateFlushing
}

// canFlush reports whether a chunk-boundary signal may be accepted.
func (s State) canFlush() bool {
	return s == StateAccumulating || s == StateFlushing
}

// canFinalize reports whether an end-of-session signal may be accepted.
func (s State) canFinalize() bool {
	return s == StateAccumulating || s == StateFlushing
}
