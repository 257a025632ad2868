package chatsphere

// SessionState is the lifecycle of the active room instance.
type SessionState int

const (
	// StateIdle means no room is active.
	StateIdle SessionState = iota

	// StateLoading means a room is activating: the history snapshot and
	// the channel open are in flight.
	StateLoading

	// StateLive means the snapshot is applied and the channel is open.
	StateLive

	// StateClosed means the channel dropped or the room was deactivated.
	// Terminal for this room instance; a fresh activation builds a new one.
	StateClosed
)

// String returns the string representation of a SessionState.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLive:
		return "live"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// StateEvent represents a state transition.
type StateEvent struct {
	Old SessionState
	New SessionState
	Err error // optional error that caused the transition
}
