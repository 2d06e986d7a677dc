package playback

import (
	"sync"
	"time"

	"github.com/mgoujon/aria/internal/engine"
)

const durationRetryDelay = 500 * time.Millisecond

// machineHooks are the callbacks the transport machine raises toward the
// session. They run off the machine's lock, on the scheduler goroutine.
type machineHooks struct {
	onPosition func(ms int64)
	onDuration func(ms int64)
	onState    func(prev, cur State)
	onEnded    func()
	onError    func()
}

// machine is the transport state machine: it polls the active driver,
// normalizes native states, detects natural track end exactly once, and
// acquires the duration asynchronously after each load.
type machine struct {
	mu sync.Mutex

	driver       func() engine.Driver
	sched        Scheduler
	pollInterval time.Duration
	alwaysEmit   bool
	hooks        machineHooks

	state          State
	endedSignaled  bool
	durationMs     int64
	lastPositionMs int64

	// gen invalidates one-shot callbacks scheduled for a previous track:
	// bindTrack and noteStop bump it, stale callbacks compare and no-op.
	gen int64

	stopPoll func()
}

func newMachine(driver func() engine.Driver, sched Scheduler, pollInterval time.Duration, alwaysEmit bool, hooks machineHooks) *machine {
	return &machine{
		driver:         driver,
		sched:          sched,
		pollInterval:   pollInterval,
		alwaysEmit:     alwaysEmit,
		hooks:          hooks,
		state:          StateStopped,
		lastPositionMs: -1,
	}
}

// start begins the periodic poll. Idempotent per machine lifetime.
func (m *machine) start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopPoll == nil {
		m.stopPoll = m.sched.Every(m.pollInterval, m.tick)
	}
}

// stop cancels the poll ticker and invalidates pending one-shots.
func (m *machine) stop() {
	m.mu.Lock()
	stop := m.stopPoll
	m.stopPoll = nil
	m.gen++
	m.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// bindTrack resets per-track state after a successful load and starts the
// duration acquisition retries.
func (m *machine) bindTrack() {
	m.mu.Lock()
	m.endedSignaled = false
	m.durationMs = 0
	m.lastPositionMs = -1
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	m.sched.After(durationRetryDelay, func() { m.retryDuration(gen) })
}

// retryDuration polls the driver for a positive duration, rescheduling
// itself until one appears or the track changes.
func (m *machine) retryDuration(gen int64) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	drv := m.driver()
	m.mu.Unlock()
	if drv == nil {
		return
	}

	d := drv.DurationMs()
	if d <= 0 {
		m.sched.After(durationRetryDelay, func() { m.retryDuration(gen) })
		return
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.durationMs = d
	m.mu.Unlock()

	if m.hooks.onDuration != nil {
		m.hooks.onDuration(d)
	}
}

// notePlay clears the end-of-track latch; a fresh play may legitimately
// end again later.
func (m *machine) notePlay() {
	m.mu.Lock()
	m.endedSignaled = false
	m.mu.Unlock()
}

// noteStop forces the normalized state to Stopped and invalidates pending
// one-shots for the previous track.
func (m *machine) noteStop() {
	m.mu.Lock()
	m.gen++
	prev := m.state
	m.state = StateStopped
	m.lastPositionMs = -1
	m.mu.Unlock()

	if prev != StateStopped || m.alwaysEmit {
		if m.hooks.onState != nil {
			m.hooks.onState(prev, StateStopped)
		}
	}
}

// clearEnded resets the end latch, reporting whether it was set. Used by
// seek-past-end handling.
func (m *machine) clearEnded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	was := m.endedSignaled
	m.endedSignaled = false
	return was
}

// generation returns the current callback-guard token.
func (m *machine) generation() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

// validGen reports whether a scheduled callback's token is still current.
func (m *machine) validGen(gen int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.gen
}

// currentState returns the last normalized state.
func (m *machine) currentState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// knownDurationMs returns the acquired duration, 0 while unknown.
func (m *machine) knownDurationMs() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.durationMs
}

// tick is the poll body: read the driver once, update normalized state,
// then raise hooks outside the lock.
func (m *machine) tick() {
	m.mu.Lock()
	drv := m.driver()
	if drv == nil {
		m.mu.Unlock()
		return
	}
	native := drv.NativeState()
	frac := drv.Position()

	var (
		emitState  bool
		prev, next State
		emitEnded  bool
		emitError  bool
		posMs      int64 = -1
	)

	next = normalize(native)
	prev = m.state

	if native == engine.StateEnded {
		// Natural completion is reported exactly once; the normalized
		// state becomes Stopped so the transport is immediately reusable.
		next = StateStopped
		if !m.endedSignaled {
			m.endedSignaled = true
			emitEnded = true
		}
	}

	m.state = next
	emitState = next != prev || m.alwaysEmit
	if next == StateError && prev != StateError {
		emitError = true
	}

	if m.durationMs > 0 && next == StatePlaying {
		if frac < 0 {
			frac = 0
		} else if frac > 1 {
			frac = 1
		}
		ms := int64(frac * float64(m.durationMs))
		if ms != m.lastPositionMs {
			m.lastPositionMs = ms
			posMs = ms
		}
	}
	m.mu.Unlock()

	if emitEnded && m.hooks.onEnded != nil {
		m.hooks.onEnded()
	}
	if emitState && m.hooks.onState != nil {
		m.hooks.onState(prev, next)
	}
	if emitError && m.hooks.onError != nil {
		m.hooks.onError()
	}
	if posMs >= 0 && m.hooks.onPosition != nil {
		m.hooks.onPosition(posMs)
	}
}

// normalize maps a driver's native vocabulary onto the transport states.
func normalize(s engine.NativeState) State {
	switch s {
	case engine.StatePlaying, engine.StateOpening:
		return StatePlaying
	case engine.StatePaused:
		return StatePaused
	case engine.StateEnded:
		return StateEnded
	case engine.StateError:
		return StateError
	default:
		return StateStopped
	}
}
