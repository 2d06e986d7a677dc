// Package engine provides the playback backend drivers and the selector
// that arbitrates between them. Each driver wraps one concrete audio
// engine behind a uniform transport contract; backend-specific quirks stay
// inside the driver implementations.
package engine

// Backend identifies one of the two interchangeable audio backends.
type Backend int

const (
	// Native is the primary, format-capable engine (specialized decoders
	// feeding the speaker output).
	Native Backend = iota
	// Framework is the narrow fallback engine (stock WAV decoding only).
	Framework
)

// String returns the backend name.
func (b Backend) String() string {
	switch b {
	case Native:
		return "native"
	case Framework:
		return "framework"
	default:
		return "unknown"
	}
}

// Other returns the alternate backend.
func (b Backend) Other() Backend {
	if b == Native {
		return Framework
	}
	return Native
}

// ParseBackend maps a configuration string to a Backend. Unrecognized
// values select the native engine.
func ParseBackend(s string) Backend {
	if s == "framework" {
		return Framework
	}
	return Native
}

// NativeState is a driver's own vocabulary of playback states, before
// normalization by the transport state machine.
type NativeState int

const (
	StateNothing NativeState = iota // no media bound
	StateOpening                    // media being bound
	StatePlaying
	StatePaused
	StateStopped
	StateEnded // media played to natural completion
	StateError // unrecoverable engine error
)

// String returns the native state name for debugging.
func (s NativeState) String() string {
	switch s {
	case StateNothing:
		return "NothingSpecial"
	case StateOpening:
		return "Opening"
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	case StateStopped:
		return "Stopped"
	case StateEnded:
		return "Ended"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Driver is the uniform transport contract over one playback engine.
//
// Every operation that can fail returns a boolean rather than an error so
// the caller can attempt the other backend; only construction fails hard.
// Implementations must be safe for concurrent use: the position poller
// reads state while command methods run.
type Driver interface {
	// Name identifies the driver for logging.
	Name() string
	// Load binds a media file. It must not block waiting for duration;
	// duration becomes available asynchronously via DurationMs.
	Load(path string) bool
	// Play starts or resumes playback. Returns whether the engine
	// accepted the command.
	Play() bool
	Pause()
	Stop()
	// SetVolume takes a 0-100 level.
	SetVolume(v int)
	Volume() int
	// SetPosition seeks to a fraction of the media length (0.0-1.0).
	SetPosition(frac float64)
	// Position returns the current position as a fraction (0.0-1.0).
	Position() float64
	// DurationMs returns the media length, 0 while unknown.
	DurationMs() int64
	// NativeState returns the engine's own, un-normalized state.
	NativeState() NativeState
	// Close releases engine resources. The driver is unusable afterwards.
	Close()
}

// Options configures the native engine at construction. The framework
// engine takes no options.
type Options struct {
	// Quiet suppresses engine log noise (captures fd-2 output from the
	// native audio layer).
	Quiet bool
	// AudioOutput names a platform sink. The output layer picks the
	// platform default; a configured name is recorded for diagnostics.
	AudioOutput string
	// CacheMs sizes the output prebuffer in milliseconds.
	CacheMs int
}
