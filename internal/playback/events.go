package playback

// StateChange is emitted when the normalized playback state changes.
//
// Emission is edge-triggered: identical consecutive states are collapsed
// so subscribers only hear transitions. A session constructed with
// always-emit reporting delivers every poll observation instead, which is
// occasionally useful when chasing backend timing issues.
type StateChange struct {
	Previous State
	Current  State
}

// PositionChange is emitted on poll ticks once the track duration is
// known. Ms is floor(position_fraction * duration).
type PositionChange struct {
	Ms int64
}

// DurationChange is emitted once per track, when the backend first
// reports a positive duration.
type DurationChange struct {
	Ms int64
}

// TrackEnded is emitted exactly once per natural end of a track, distinct
// from StateChange: a bare Stopped is ambiguous between "user pressed
// stop" and "track finished", and the application needs to tell them
// apart to decide whether to advance.
type TrackEnded struct {
	Path string
}

// ErrorEvent is emitted when playback fails beyond recovery.
type ErrorEvent struct {
	Operation string // e.g., "load", "recover"
	Path      string // track path if applicable
	Err       error
}
