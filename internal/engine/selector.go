package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrNoBackend reports that no backend could be initialized.
var ErrNoBackend = errors.New("engine: no usable backend")

// Factory constructs a Driver for one backend. Construction is the only
// driver operation allowed to fail hard.
type Factory func() (Driver, error)

// Selector owns both backend drivers and decides which one receives
// transport commands. Exactly one backend is active at a time; on load
// failure it can switch to the other backend transparently.
type Selector struct {
	mu sync.Mutex

	factories     map[Backend]Factory
	drivers       map[Backend]Driver
	active        Backend
	preferred     Backend
	fallbackAllow bool
	log           *slog.Logger
}

// NewSelector builds a selector. Drivers are constructed lazily through
// the factories; SelectInitial must run before any transport use.
func NewSelector(preferred Backend, fallbackAllowed bool, factories map[Backend]Factory, log *slog.Logger) *Selector {
	return &Selector{
		factories:     factories,
		drivers:       make(map[Backend]Driver),
		preferred:     preferred,
		fallbackAllow: fallbackAllowed,
		log:           log,
	}
}

// SelectInitial initializes the preferred backend, or the alternate when
// the preferred one fails to construct. It ends with exactly one usable
// active backend, or ErrNoBackend when both fail.
func (s *Selector) SelectInitial() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.driverLocked(s.preferred); err == nil {
		s.active = s.preferred
		s.log.Info("backend selected", "backend", s.active.String())
		return nil
	} else {
		s.log.Warn("preferred backend failed to initialize",
			"backend", s.preferred.String(), "error", err)
	}

	alt := s.preferred.Other()
	if _, err := s.driverLocked(alt); err != nil {
		return fmt.Errorf("%w: %s and %s both failed", ErrNoBackend,
			s.preferred.String(), alt.String())
	}
	s.active = alt
	s.log.Info("backend selected after fallback", "backend", s.active.String())
	return nil
}

// driverLocked returns the driver for b, constructing it on first use.
func (s *Selector) driverLocked(b Backend) (Driver, error) {
	if d, ok := s.drivers[b]; ok {
		return d, nil
	}
	factory, ok := s.factories[b]
	if !ok {
		return nil, fmt.Errorf("engine: no factory for %s backend", b.String())
	}
	d, err := factory()
	if err != nil {
		return nil, err
	}
	s.drivers[b] = d
	return d, nil
}

// Active returns the currently active driver. Nil before SelectInitial.
func (s *Selector) Active() Driver {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drivers[s.active]
}

// ActiveBackend returns which backend currently owns playback.
func (s *Selector) ActiveBackend() Backend {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Alternate returns the backend that is not currently active.
func (s *Selector) Alternate() Backend {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active.Other()
}

// FallbackAllowed reports whether switching backends on failure is enabled.
func (s *Selector) FallbackAllowed() bool {
	return s.fallbackAllow
}

// LoadWithFallback loads path on the active backend. On refusal, and when
// fallback is allowed, it switches to the other backend and retries once.
// Returns false only when every option is exhausted.
func (s *Selector) LoadWithFallback(path string) bool {
	s.mu.Lock()
	active := s.drivers[s.active]
	s.mu.Unlock()

	if active == nil {
		return false
	}
	if active.Load(path) {
		return true
	}

	if !s.fallbackAllow {
		return false
	}

	other := s.ActiveBackend().Other()
	s.log.Warn("load failed, switching backend",
		"path", path, "from", s.ActiveBackend().String(), "to", other.String())

	if !s.SwitchTo(other) {
		return false
	}
	return s.Active().Load(path)
}

// SwitchTo makes b the active backend, stopping the previous driver
// best-effort. It does not reload media; the caller re-issues load/play
// when recovering mid-playback. Returns false when b cannot be
// constructed.
func (s *Selector) SwitchTo(b Backend) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b == s.active {
		if _, ok := s.drivers[b]; ok {
			return true
		}
	}

	next, err := s.driverLocked(b)
	if err != nil {
		s.log.Warn("backend unavailable", "backend", b.String(), "error", err)
		return false
	}

	if prev, ok := s.drivers[s.active]; ok && prev != next {
		prev.Stop()
	}
	s.active = b
	return true
}

// Close releases both drivers.
func (s *Selector) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.drivers {
		d.Close()
	}
	s.drivers = make(map[Backend]Driver)
}
