package playback

import (
	"sort"
	"sync"
	"time"
)

// Scheduler abstracts timer-driven callbacks so the state machine can be
// tested without waiting on the wall clock. Callbacks run on the
// scheduler's own goroutine; callers synchronize their own state.
type Scheduler interface {
	// Every runs fn at the given interval until the returned stop
	// function is called.
	Every(d time.Duration, fn func()) (stop func())
	// After runs fn once after the given delay unless the returned
	// cancel function is called first.
	After(d time.Duration, fn func()) (cancel func())
}

// TimerScheduler is the production Scheduler, backed by time.Ticker and
// time.Timer.
type TimerScheduler struct{}

func (TimerScheduler) Every(d time.Duration, fn func()) (stop func()) {
	ticker := time.NewTicker(d)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				fn()
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}

func (TimerScheduler) After(d time.Duration, fn func()) (cancel func()) {
	timer := time.AfterFunc(d, fn)
	return func() { timer.Stop() }
}

// ManualScheduler is a deterministic Scheduler for tests. Time only moves
// when Advance is called; due callbacks run synchronously on the calling
// goroutine, in deadline order.
type ManualScheduler struct {
	mu      sync.Mutex
	now     time.Duration
	nextID  int
	entries []*manualEntry
}

type manualEntry struct {
	id       int
	deadline time.Duration
	interval time.Duration // 0 for one-shots
	fn       func()
	canceled bool
}

// NewManualScheduler creates a manual scheduler starting at time zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (m *ManualScheduler) Every(d time.Duration, fn func()) (stop func()) {
	return m.add(d, d, fn)
}

func (m *ManualScheduler) After(d time.Duration, fn func()) (cancel func()) {
	return m.add(d, 0, fn)
}

func (m *ManualScheduler) add(d, interval time.Duration, fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := &manualEntry{
		id:       m.nextID,
		deadline: m.now + d,
		interval: interval,
		fn:       fn,
	}
	m.nextID++
	m.entries = append(m.entries, e)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		e.canceled = true
	}
}

// Advance moves the clock forward and runs every callback that comes due,
// in deadline order. Recurring callbacks fire once per elapsed interval.
func (m *ManualScheduler) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		e := m.nextDue(target)
		if e == nil {
			break
		}
		e.fn()
	}

	m.mu.Lock()
	m.now = target
	m.mu.Unlock()
}

// nextDue pops the earliest non-canceled entry with deadline <= target,
// advancing the clock to that deadline and rescheduling recurring entries.
func (m *ManualScheduler) nextDue(target time.Duration) *manualEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	live := m.entries[:0]
	for _, e := range m.entries {
		if !e.canceled {
			live = append(live, e)
		}
	}
	m.entries = live

	sort.SliceStable(m.entries, func(i, j int) bool {
		return m.entries[i].deadline < m.entries[j].deadline
	})
	if len(m.entries) == 0 || m.entries[0].deadline > target {
		return nil
	}

	e := m.entries[0]
	m.now = e.deadline
	if e.interval > 0 {
		e.deadline += e.interval
	} else {
		m.entries = m.entries[1:]
	}
	return e
}
