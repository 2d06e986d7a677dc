package engine

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
)

// decodeFunc opens a media file and returns its sample stream. The two
// drivers differ mainly in which decode stack they bring.
type decodeFunc func(path string) (beep.StreamSeekCloser, beep.Format, error)

// beepDriver is the transport core shared by both concrete drivers.
//
// Locking: s.mu guards driver state; speaker.Lock guards the mixer. The
// end-of-stream callback runs on the speaker goroutine and must never take
// s.mu, so natural completion is signaled through atomics and folded into
// the state on the next NativeState read.
type beepDriver struct {
	name   string
	decode decodeFunc
	log    *slog.Logger

	mu       sync.Mutex
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	vol      *effects.Volume
	state    NativeState
	level    int // 0..100

	// gen invalidates completion callbacks from superseded playbacks.
	gen   atomic.Int64
	ended atomic.Bool
}

func newBeepDriver(name string, decode decodeFunc, log *slog.Logger) beepDriver {
	return beepDriver{
		name:   name,
		decode: decode,
		log:    log,
		state:  StateNothing,
		level:  70,
	}
}

func (d *beepDriver) Name() string { return d.name }

// Load binds a media file without starting playback. Returns false on any
// decode failure so the caller can try the other backend.
func (d *beepDriver) Load(path string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.state = StateOpening

	streamer, format, err := d.decode(path)
	if err != nil {
		d.log.Debug("load failed", "driver", d.name, "path", path, "error", err)
		d.state = StateNothing
		return false
	}

	d.streamer = streamer
	d.format = format
	d.state = StateStopped
	d.ended.Store(false)
	return true
}

// Play starts playback, or resumes it when paused. From Ended it resubmits
// the stream at its current position.
func (d *beepDriver) Play() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.foldEndedLocked()

	switch d.state {
	case StatePlaying:
		return true
	case StatePaused:
		speaker.Lock()
		d.ctrl.Paused = false
		speaker.Unlock()
		d.state = StatePlaying
		return true
	case StateStopped, StateEnded:
		if d.streamer == nil {
			return false
		}
		return d.startLocked()
	default:
		return false
	}
}

// startLocked submits the stream to the speaker. Caller holds d.mu.
func (d *beepDriver) startLocked() bool {
	// A stream exhausted by natural completion restarts from the top
	// unless a seek already moved it.
	if d.streamer.Position() >= d.streamer.Len() {
		if err := d.streamer.Seek(0); err != nil {
			d.state = StateError
			return false
		}
	}

	var src beep.Streamer = d.streamer
	if d.format.SampleRate != outputRate {
		src = beep.Resample(4, d.format.SampleRate, outputRate, d.streamer)
	}
	d.ctrl = &beep.Ctrl{Streamer: src}
	d.vol = &effects.Volume{Streamer: d.ctrl, Base: 2}
	applyLevel(d.vol, d.level)

	gen := d.gen.Add(1)
	d.ended.Store(false)

	speaker.Play(beep.Seq(d.vol, beep.Callback(func() {
		// Runs on the speaker goroutine: atomics only.
		if d.gen.Load() == gen {
			d.ended.Store(true)
		}
	})))

	d.state = StatePlaying
	return true
}

func (d *beepDriver) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StatePlaying || d.ctrl == nil {
		return
	}
	speaker.Lock()
	d.ctrl.Paused = true
	speaker.Unlock()
	d.state = StatePaused
}

// Stop halts playback and releases the media. Play after Stop requires a
// fresh Load.
func (d *beepDriver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

func (d *beepDriver) stopLocked() {
	d.gen.Add(1) // invalidate any in-flight completion callback
	d.ended.Store(false)

	if d.streamer == nil && d.ctrl == nil {
		d.state = StateStopped
		return
	}

	speaker.Clear()
	if d.streamer != nil {
		d.streamer.Close()
		d.streamer = nil
	}
	d.ctrl = nil
	d.vol = nil
	d.state = StateStopped
}

// SetVolume takes a 0-100 level, clamped.
func (d *beepDriver) SetVolume(v int) {
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.level = v
	if d.vol != nil {
		speaker.Lock()
		applyLevel(d.vol, v)
		speaker.Unlock()
	}
}

func (d *beepDriver) Volume() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.level
}

// applyLevel maps a 0-100 level onto beep's logarithmic volume scale.
// 100 -> 0 (unchanged), 50 -> -1 (half), 0 -> silent.
func applyLevel(vol *effects.Volume, level int) {
	if level <= 0 {
		vol.Silent = true
		return
	}
	vol.Silent = false
	if level >= 100 {
		vol.Volume = 0
		return
	}
	vol.Volume = math.Log2(float64(level) / 100)
}

// SetPosition seeks to a fraction of the media length.
func (d *beepDriver) SetPosition(frac float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.streamer == nil {
		return
	}
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}

	speaker.Lock()
	target := int(frac * float64(d.streamer.Len()))
	err := d.streamer.Seek(target)
	speaker.Unlock()
	if err != nil {
		d.log.Debug("seek failed", "driver", d.name, "error", err)
	}
}

func (d *beepDriver) Position() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.streamer == nil {
		return 0
	}
	// The speaker goroutine streams from the same decoder; position must
	// not be read mid-Stream.
	speaker.Lock()
	pos, total := d.streamer.Position(), d.streamer.Len()
	speaker.Unlock()
	if total <= 0 {
		return 0
	}
	frac := float64(pos) / float64(total)
	if frac > 1 {
		frac = 1
	}
	return frac
}

func (d *beepDriver) DurationMs() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.streamer == nil {
		return 0
	}
	speaker.Lock()
	total := d.streamer.Len()
	speaker.Unlock()
	return d.format.SampleRate.D(total).Milliseconds()
}

func (d *beepDriver) NativeState() NativeState {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.foldEndedLocked()
	if d.streamer != nil {
		speaker.Lock()
		streamErr := d.streamer.Err()
		speaker.Unlock()
		if streamErr != nil && d.state != StateEnded {
			return StateError
		}
	}
	return d.state
}

// foldEndedLocked folds the atomic completion signal into the state.
func (d *beepDriver) foldEndedLocked() {
	if d.ended.Load() && d.state == StatePlaying {
		d.state = StateEnded
	}
}

func (d *beepDriver) Close() {
	d.Stop()
}
