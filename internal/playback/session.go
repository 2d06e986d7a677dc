package playback

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mgoujon/aria/internal/config"
	"github.com/mgoujon/aria/internal/engine"
	"github.com/mgoujon/aria/internal/transcode"
)

const (
	defaultVolume   = 70
	resumeSeekDelay = 100 * time.Millisecond
)

// ErrPlaybackFailed is carried by terminal ErrorEvents once every recovery
// option has been exhausted.
var ErrPlaybackFailed = errors.New("playback: track failed after all recovery attempts")

// Session is the public playback object the application holds. It owns the
// current track, volume and mute memory, seek rate limiting, temp-file
// lifecycle, and the retry-then-fallback recovery policy. All methods are
// safe for concurrent use.
type Session struct {
	mu sync.Mutex

	sel        *engine.Selector
	classifier *transcode.Classifier
	transcoder *transcode.Transcoder
	machine    *machine
	sched      Scheduler
	log        *slog.Logger

	currentTrack string // path the application asked for
	loadedPath   string // path the driver actually plays (temp WAV when transcoded)
	tempFile     string

	volume           int
	muted            bool
	volumeBeforeMute int

	lastSeek        time.Time
	minSeekInterval time.Duration

	autoRecover    bool
	retryDelay     time.Duration
	maxRetries     int
	retryCount     int
	fallbackUsed   bool
	recoveryFailed bool

	stopForgets bool
	closed      bool

	subMu sync.Mutex
	subs  map[*Subscription]struct{}
}

// SessionOptions bundles the session collaborators. Sched defaults to the
// timer scheduler; tests inject a manual one.
type SessionOptions struct {
	Selector   *engine.Selector
	Classifier *transcode.Classifier
	Transcoder *transcode.Transcoder
	Sched      Scheduler
	AlwaysEmit bool
}

// NewSession wires a session from configuration and starts the position
// poller. The selector must already have an active backend.
func NewSession(cfg *config.Config, opts SessionOptions, log *slog.Logger) *Session {
	p := cfg.Playback
	// Hand-built configs may skip the loader's defaults; zero timing
	// values would divide by zero or tick without delay.
	if p.MaxSeeksPerSecond <= 0 {
		p.MaxSeeksPerSecond = 5
	}
	if p.PollIntervalMs <= 0 {
		p.PollIntervalMs = 100
	}
	if p.RetryDelayMs <= 0 {
		p.RetryDelayMs = 500
	}
	sched := opts.Sched
	if sched == nil {
		sched = TimerScheduler{}
	}

	s := &Session{
		sel:             opts.Selector,
		classifier:      opts.Classifier,
		transcoder:      opts.Transcoder,
		sched:           sched,
		log:             log,
		volume:          defaultVolume,
		minSeekInterval: time.Second / time.Duration(p.MaxSeeksPerSecond),
		autoRecover:     cfg.AutoRecover(),
		retryDelay:      time.Duration(p.RetryDelayMs) * time.Millisecond,
		maxRetries:      p.MaxRetryAttempts,
		stopForgets:     p.StopForgetsTrack,
		subs:            make(map[*Subscription]struct{}),
	}

	s.machine = newMachine(
		s.activeDriver,
		sched,
		time.Duration(p.PollIntervalMs)*time.Millisecond,
		opts.AlwaysEmit,
		machineHooks{
			onPosition: s.broadcastPosition,
			onDuration: s.broadcastDuration,
			onState:    s.broadcastState,
			onEnded:    s.handleTrackEnded,
			onError:    s.handleNativeError,
		},
	)
	s.machine.start()
	return s
}

func (s *Session) activeDriver() engine.Driver {
	return s.sel.Active()
}

// Subscribe returns a new event subscription. The caller must Unsubscribe
// when done.
func (s *Session) Subscribe() *Subscription {
	sub := newSubscription()
	s.subMu.Lock()
	s.subs[sub] = struct{}{}
	s.subMu.Unlock()
	return sub
}

// Unsubscribe removes a subscription and closes its Done channel.
func (s *Session) Unsubscribe(sub *Subscription) {
	s.subMu.Lock()
	if _, ok := s.subs[sub]; ok {
		delete(s.subs, sub)
		sub.close()
	}
	s.subMu.Unlock()
}

// Load binds a track, transcoding first when the classifier indicates the
// format needs it. Returns false when no backend accepts the file; the
// session is then in the stopped, no-track state.
func (s *Session) Load(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}

	s.cleanupTempLocked()
	s.retryCount = 0
	s.fallbackUsed = false
	s.recoveryFailed = false

	loadPath := path
	if s.classifier != nil && s.classifier.Classify(filepath.Ext(path)) == transcode.NeedsTranscode && s.transcoder != nil {
		out, err := s.transcoder.Transcode(path)
		if err != nil {
			// Conversion trouble is not fatal: try the original directly.
			s.log.Warn("transcode failed, trying original file",
				"path", path, "error", err)
		} else {
			s.tempFile = out
			loadPath = out
		}
	}

	if !s.sel.LoadWithFallback(loadPath) {
		s.log.Error("no backend accepted track", "path", path)
		s.cleanupTempLocked()
		s.currentTrack = ""
		s.loadedPath = ""
		s.machine.noteStop()
		return false
	}

	s.currentTrack = path
	s.loadedPath = loadPath
	s.machine.bindTrack()
	s.applyVolumeLocked()
	s.log.Info("track loaded",
		"path", path, "backend", s.sel.ActiveBackend().String(),
		"transcoded", loadPath != path)
	return true
}

// Play starts or resumes playback of the loaded track.
func (s *Session) Play() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	drv := s.activeDriver()
	if drv == nil || s.currentTrack == "" {
		return false
	}
	if !drv.Play() {
		return false
	}
	s.machine.notePlay()
	return true
}

// Pause pauses playback if playing.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if drv := s.activeDriver(); drv != nil {
		drv.Pause()
	}
}

// Stop halts playback and removes the temp file. Whether the current
// track is forgotten is configurable; by default it is retained so the
// application can restart it.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if drv := s.activeDriver(); drv != nil {
		drv.Stop()
	}
	s.machine.noteStop()
	s.cleanupTempLocked()
	if s.stopForgets {
		s.currentTrack = ""
		s.loadedPath = ""
	}
}

// SetVolume clamps to [0,100] and stores the level. While muted the driver
// stays at zero; the stored level is what unmute restores.
func (s *Session) SetVolume(v int) {
	if v < 0 {
		v = 0
	} else if v > 100 {
		v = 100
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = v
	if !s.muted {
		if drv := s.activeDriver(); drv != nil {
			drv.SetVolume(v)
		}
	}
}

// Volume returns the stored volume level, regardless of mute.
func (s *Session) Volume() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// Mute silences the driver, remembering the current level.
func (s *Session) Mute() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.muted {
		return
	}
	s.volumeBeforeMute = s.volume
	s.muted = true
	if drv := s.activeDriver(); drv != nil {
		drv.SetVolume(0)
	}
}

// Unmute restores the pre-mute volume.
func (s *Session) Unmute() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.muted {
		return
	}
	s.muted = false
	s.volume = s.volumeBeforeMute
	if drv := s.activeDriver(); drv != nil {
		drv.SetVolume(s.volume)
	}
}

// ToggleMute flips mute and reports the resulting muted state.
func (s *Session) ToggleMute() bool {
	s.mu.Lock()
	muted := s.muted
	s.mu.Unlock()
	if muted {
		s.Unmute()
	} else {
		s.Mute()
	}
	return !muted
}

// IsMuted reports the mute state.
func (s *Session) IsMuted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// SetPosition seeks to an absolute position in milliseconds. Calls inside
// the rate-limit window are silently dropped; UI slider drags are expected
// to hammer this. Seeking after a natural end resumes playback shortly
// after the seek, since backends do not restart from Ended on their own.
func (s *Session) SetPosition(ms int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if !s.lastSeek.IsZero() && now.Sub(s.lastSeek) < s.minSeekInterval {
		return
	}
	drv := s.activeDriver()
	dur := s.machine.knownDurationMs()
	if drv == nil || dur <= 0 {
		return
	}
	s.lastSeek = now

	wasEnded := s.machine.clearEnded() || drv.NativeState() == engine.StateEnded

	if ms < 0 {
		ms = 0
	} else if ms > dur {
		ms = dur
	}
	drv.SetPosition(float64(ms) / float64(dur))

	if wasEnded {
		gen := s.machine.generation()
		s.sched.After(resumeSeekDelay, func() {
			if !s.machine.validGen(gen) {
				return
			}
			if d := s.activeDriver(); d != nil {
				d.Play()
				s.machine.notePlay()
			}
		})
	}
}

// PositionMs returns the current position in milliseconds, 0 when the
// duration is not yet known.
func (s *Session) PositionMs() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	drv := s.activeDriver()
	dur := s.machine.knownDurationMs()
	if drv == nil || dur <= 0 {
		return 0
	}
	frac := drv.Position()
	if frac < 0 {
		frac = 0
	} else if frac > 1 {
		frac = 1
	}
	return int64(frac * float64(dur))
}

// DurationMs returns the track duration, 0 while unknown.
func (s *Session) DurationMs() int64 {
	return s.machine.knownDurationMs()
}

// State returns the normalized transport state.
func (s *Session) State() State { return s.machine.currentState() }

func (s *Session) IsPlaying() bool { return s.State() == StatePlaying }
func (s *Session) IsPaused() bool  { return s.State() == StatePaused }
func (s *Session) IsStopped() bool { return s.State() == StateStopped }

// CurrentTrack returns the path of the loaded track, empty when none.
func (s *Session) CurrentTrack() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentTrack
}

// ActiveBackend reports which engine currently owns playback.
func (s *Session) ActiveBackend() engine.Backend {
	return s.sel.ActiveBackend()
}

// Close tears the session down: poller canceled, drivers released, temp
// file removed, subscriptions closed. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	// Timers first; a tick must not fire against released drivers.
	s.machine.stop()

	s.mu.Lock()
	s.sel.Close()
	s.cleanupTempLocked()
	s.currentTrack = ""
	s.loadedPath = ""
	s.mu.Unlock()

	s.subMu.Lock()
	for sub := range s.subs {
		sub.close()
	}
	s.subs = make(map[*Subscription]struct{})
	s.subMu.Unlock()
}

// applyVolumeLocked pushes the effective level to the active driver. Used
// after load and after backend switches, when the new driver's level may
// not match the session's.
func (s *Session) applyVolumeLocked() {
	drv := s.activeDriver()
	if drv == nil {
		return
	}
	if s.muted {
		drv.SetVolume(0)
	} else {
		drv.SetVolume(s.volume)
	}
}

// cleanupTempLocked removes the session's temp file if one exists.
// Idempotent; failures are logged and tolerated (the backend may hold the
// file briefly after stop, leaving an orphan rather than crashing).
func (s *Session) cleanupTempLocked() {
	if s.tempFile == "" {
		return
	}
	if err := os.Remove(s.tempFile); err != nil && !os.IsNotExist(err) {
		s.log.Warn("could not remove temp file", "path", s.tempFile, "error", err)
	}
	s.tempFile = ""
}

// handleTrackEnded relays the machine's exactly-once end signal.
func (s *Session) handleTrackEnded() {
	s.mu.Lock()
	path := s.currentTrack
	s.mu.Unlock()
	s.log.Info("track ended", "path", path)

	s.subMu.Lock()
	for sub := range s.subs {
		sub.sendEnded(TrackEnded{Path: path})
	}
	s.subMu.Unlock()
}

// handleNativeError runs the recovery policy when the poller observes the
// backend in its error state: bounded retries of the same path, then a
// one-time backend fallback, then a terminal ErrorEvent.
func (s *Session) handleNativeError() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.loadedPath == "" || s.recoveryFailed {
		return
	}
	if !s.autoRecover {
		s.emitTerminalErrorLocked("play")
		return
	}

	if drv := s.activeDriver(); drv != nil {
		drv.Stop()
	}

	if s.retryCount < s.maxRetries {
		s.retryCount++
		s.log.Warn("playback error, retrying",
			"path", s.currentTrack,
			"attempt", s.retryCount, "max", s.maxRetries)
		s.scheduleReloadLocked(s.sel.ActiveBackend())
		return
	}

	if s.sel.FallbackAllowed() && !s.fallbackUsed {
		s.fallbackUsed = true
		other := s.sel.ActiveBackend().Other()
		s.log.Warn("retries exhausted, falling back",
			"path", s.currentTrack, "backend", other.String())
		if s.sel.SwitchTo(other) {
			s.retryCount = 0
			s.scheduleReloadLocked(other)
			return
		}
	}

	s.emitTerminalErrorLocked("recover")
}

// scheduleReloadLocked arranges a delayed load+play of the current media
// on the given backend, guarded so a newer load or a stop supersedes it.
func (s *Session) scheduleReloadLocked(backend engine.Backend) {
	path := s.loadedPath
	gen := s.machine.generation()
	s.sched.After(s.retryDelay, func() {
		if !s.machine.validGen(gen) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || s.loadedPath != path || s.sel.ActiveBackend() != backend {
			return
		}
		drv := s.activeDriver()
		if drv == nil || !drv.Load(path) {
			s.handleNativeErrorLocked()
			return
		}
		s.applyVolumeLocked()
		s.machine.notePlay()
		drv.Play()
	})
}

// handleNativeErrorLocked re-enters the recovery policy with the session
// lock already held (used when a recovery reload itself fails).
func (s *Session) handleNativeErrorLocked() {
	if s.retryCount < s.maxRetries {
		s.retryCount++
		s.scheduleReloadLocked(s.sel.ActiveBackend())
		return
	}
	if s.sel.FallbackAllowed() && !s.fallbackUsed {
		s.fallbackUsed = true
		if s.sel.SwitchTo(s.sel.ActiveBackend().Other()) {
			s.retryCount = 0
			s.scheduleReloadLocked(s.sel.ActiveBackend())
			return
		}
	}
	s.emitTerminalErrorLocked("recover")
}

// emitTerminalErrorLocked surfaces a playback failure once; the latch
// holds until the next Load so repeated error observations stay quiet.
func (s *Session) emitTerminalErrorLocked(op string) {
	s.recoveryFailed = true
	path := s.currentTrack
	s.log.Error("playback failed", "operation", op, "path", path)
	s.subMu.Lock()
	for sub := range s.subs {
		sub.sendError(ErrorEvent{Operation: op, Path: path, Err: ErrPlaybackFailed})
	}
	s.subMu.Unlock()
}

func (s *Session) broadcastPosition(ms int64) {
	s.subMu.Lock()
	for sub := range s.subs {
		sub.sendPosition(PositionChange{Ms: ms})
	}
	s.subMu.Unlock()
}

func (s *Session) broadcastDuration(ms int64) {
	s.subMu.Lock()
	for sub := range s.subs {
		sub.sendDuration(DurationChange{Ms: ms})
	}
	s.subMu.Unlock()
}

func (s *Session) broadcastState(prev, cur State) {
	s.subMu.Lock()
	for sub := range s.subs {
		sub.sendState(StateChange{Previous: prev, Current: cur})
	}
	s.subMu.Unlock()
}
