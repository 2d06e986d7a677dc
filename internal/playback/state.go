// Package playback implements the normalized transport state machine and
// the session manager that the application drives. It polls the active
// backend driver, normalizes its native states, and fans events out to
// subscribers.
package playback

// State represents the normalized playback state.
type State int

const (
	StateStopped State = iota
	StatePlaying
	StatePaused
	StateEnded
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	case StateEnded:
		return "Ended"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// IsActive returns true if playback is active (playing or paused).
func (s State) IsActive() bool {
	return s == StatePlaying || s == StatePaused
}
