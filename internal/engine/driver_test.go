package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in   string
		want Backend
	}{
		{"native", Native},
		{"framework", Framework},
		{"", Native},
		{"vlc", Native},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseBackend(tt.in), "ParseBackend(%q)", tt.in)
	}
}

func TestBackendOther(t *testing.T) {
	assert.Equal(t, Framework, Native.Other())
	assert.Equal(t, Native, Framework.Other())
}

func TestNativeStateString(t *testing.T) {
	assert.Equal(t, "NothingSpecial", StateNothing.String())
	assert.Equal(t, "Playing", StatePlaying.String())
	assert.Equal(t, "Ended", StateEnded.String())
	assert.Equal(t, "Error", StateError.String())
}

func TestMockDriverTransport(t *testing.T) {
	m := NewMockDriver("mock")
	assert.Equal(t, StateNothing, m.NativeState())

	assert.True(t, m.Load("/music/a.wav"))
	assert.Equal(t, StateStopped, m.NativeState())

	assert.True(t, m.Play())
	assert.Equal(t, StatePlaying, m.NativeState())

	m.Pause()
	assert.Equal(t, StatePaused, m.NativeState())

	assert.True(t, m.Play())
	assert.Equal(t, StatePlaying, m.NativeState())

	m.SetDurationMs(120000)
	m.SimulateEnded()
	assert.Equal(t, StateEnded, m.NativeState())
	assert.InDelta(t, 1.0, m.Position(), 0.001)

	m.Stop()
	assert.Equal(t, StateStopped, m.NativeState())
	assert.Zero(t, m.Position())
}
