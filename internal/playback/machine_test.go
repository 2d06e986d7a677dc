package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mgoujon/aria/internal/engine"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		native engine.NativeState
		want   State
	}{
		{engine.StateNothing, StateStopped},
		{engine.StateOpening, StatePlaying},
		{engine.StatePlaying, StatePlaying},
		{engine.StatePaused, StatePaused},
		{engine.StateStopped, StateStopped},
		{engine.StateEnded, StateEnded},
		{engine.StateError, StateError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalize(tt.native), "normalize(%s)", tt.native)
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Stopped", StateStopped.String())
	assert.Equal(t, "Ended", StateEnded.String())
	assert.Equal(t, "Error", StateError.String())
	assert.Equal(t, "Unknown", State(42).String())
}

func TestStateIsActive(t *testing.T) {
	assert.True(t, StatePlaying.IsActive())
	assert.True(t, StatePaused.IsActive())
	assert.False(t, StateStopped.IsActive())
	assert.False(t, StateEnded.IsActive())
	assert.False(t, StateError.IsActive())
}
