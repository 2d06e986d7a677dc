package playback

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualSchedulerAfter(t *testing.T) {
	m := NewManualScheduler()
	fired := 0
	m.After(500*time.Millisecond, func() { fired++ })

	m.Advance(499 * time.Millisecond)
	assert.Zero(t, fired)
	m.Advance(1 * time.Millisecond)
	assert.Equal(t, 1, fired)
	m.Advance(time.Second)
	assert.Equal(t, 1, fired, "one-shot fires once")
}

func TestManualSchedulerAfterCancel(t *testing.T) {
	m := NewManualScheduler()
	fired := false
	cancel := m.After(100*time.Millisecond, func() { fired = true })
	cancel()
	m.Advance(time.Second)
	assert.False(t, fired)
}

func TestManualSchedulerEvery(t *testing.T) {
	m := NewManualScheduler()
	ticks := 0
	stop := m.Every(100*time.Millisecond, func() { ticks++ })

	m.Advance(350 * time.Millisecond)
	assert.Equal(t, 3, ticks)

	stop()
	m.Advance(time.Second)
	assert.Equal(t, 3, ticks)
}

func TestManualSchedulerRunsInDeadlineOrder(t *testing.T) {
	m := NewManualScheduler()
	var order []string
	m.After(300*time.Millisecond, func() { order = append(order, "late") })
	m.After(100*time.Millisecond, func() { order = append(order, "early") })

	m.Advance(time.Second)
	assert.Equal(t, []string{"early", "late"}, order)
}

func TestManualSchedulerCallbackMaySchedule(t *testing.T) {
	m := NewManualScheduler()
	var order []string
	m.After(100*time.Millisecond, func() {
		order = append(order, "first")
		m.After(100*time.Millisecond, func() { order = append(order, "second") })
	})

	// The nested callback comes due within the same Advance window.
	m.Advance(300 * time.Millisecond)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestTimerSchedulerAfter(t *testing.T) {
	var s TimerScheduler
	done := make(chan struct{})
	s.After(time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback did not fire")
	}
}

func TestTimerSchedulerEveryStops(t *testing.T) {
	var s TimerScheduler
	var mu sync.Mutex
	ticks := 0
	stop := s.Every(time.Millisecond, func() {
		mu.Lock()
		ticks++
		mu.Unlock()
	})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return ticks >= 2
	}, time.Second, time.Millisecond)

	stop()
	stop() // stopping twice is fine
}
