package engine

import "sync"

// MockDriver is a test double for Driver.
type MockDriver struct {
	mu sync.Mutex

	name       string
	state      NativeState
	level      int
	positionMs int64
	durationMs int64

	failLoads  int
	failPlays  bool
	loadCalls  []string
	playCalls  int
	stopCalls  int
	pauseCalls int
	seekCalls  []float64
	closed     bool
}

// NewMockDriver creates a mock driver for testing.
func NewMockDriver(name string) *MockDriver {
	return &MockDriver{
		name:  name,
		state: StateNothing,
		level: 70,
	}
}

func (m *MockDriver) Name() string { return m.name }

func (m *MockDriver) Load(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadCalls = append(m.loadCalls, path)
	if m.failLoads > 0 {
		m.failLoads--
		m.state = StateNothing
		return false
	}
	m.state = StateStopped
	m.positionMs = 0
	return true
}

func (m *MockDriver) Play() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playCalls++
	if m.failPlays {
		m.state = StateError
		return false
	}
	switch m.state {
	case StateStopped, StatePaused, StateEnded:
		m.state = StatePlaying
	}
	return m.state == StatePlaying
}

func (m *MockDriver) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauseCalls++
	if m.state == StatePlaying {
		m.state = StatePaused
	}
}

func (m *MockDriver) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalls++
	if m.state != StateNothing {
		m.state = StateStopped
	}
	m.positionMs = 0
}

func (m *MockDriver) SetVolume(level int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.level = level
}

func (m *MockDriver) Volume() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

func (m *MockDriver) SetPosition(frac float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seekCalls = append(m.seekCalls, frac)
	if m.durationMs > 0 {
		m.positionMs = int64(frac * float64(m.durationMs))
	}
}

func (m *MockDriver) Position() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.durationMs <= 0 {
		return 0
	}
	return float64(m.positionMs) / float64(m.durationMs)
}

func (m *MockDriver) DurationMs() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.durationMs
}

func (m *MockDriver) NativeState() NativeState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *MockDriver) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.state = StateNothing
}

// Test helpers

func (m *MockDriver) SetNativeState(s NativeState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}

func (m *MockDriver) SetDurationMs(d int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durationMs = d
}

func (m *MockDriver) SetPositionMs(p int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positionMs = p
}

// FailLoads makes the next n Load calls return false.
func (m *MockDriver) FailLoads(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failLoads = n
}

// FailPlays makes Play calls fail until cleared.
func (m *MockDriver) FailPlays(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failPlays = fail
}

// SimulateEnded moves the mock to the ended state, as if the stream
// drained on its own.
func (m *MockDriver) SimulateEnded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateEnded
	m.positionMs = m.durationMs
}

func (m *MockDriver) LoadCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.loadCalls...)
}

func (m *MockDriver) PlayCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playCalls
}

func (m *MockDriver) StopCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopCalls
}

func (m *MockDriver) SeekCalls() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.seekCalls...)
}

func (m *MockDriver) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Verify MockDriver implements Driver at compile time.
var _ Driver = (*MockDriver)(nil)
