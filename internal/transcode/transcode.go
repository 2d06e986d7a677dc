package transcode

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
)

// Normalization targets for the WAV intermediate. Chosen for maximum
// backend compatibility, not negotiable per file.
const (
	targetSampleRate = beep.SampleRate(44100)
	targetChannels   = 2
	targetPrecision  = 2 // 16-bit
)

// ErrTranscodeUnavailable reports that the decode stack cannot handle the
// input. Callers should fall back to loading the original path directly.
var ErrTranscodeUnavailable = errors.New("transcode: no decoder for input")

// serial disambiguates temp files created within the same second.
var serial atomic.Int64

// Transcoder converts audio files to a normalized PCM WAV intermediate.
// It creates temp files but never deletes them; the caller owns cleanup.
type Transcoder struct {
	dir string // temp directory, os.TempDir() if empty
}

// NewTranscoder creates a transcoder writing intermediates to dir.
// An empty dir means the platform temp directory.
func NewTranscoder(dir string) *Transcoder {
	return &Transcoder{dir: dir}
}

// Transcode converts inputPath to a 44.1 kHz stereo 16-bit WAV file at a
// fresh temporary path and returns that path. The output is registered to
// the caller: it is not removed here.
func (t *Transcoder) Transcode(inputPath string) (string, error) {
	ext := filepath.Ext(inputPath)
	if !CanDecode(ext) {
		return "", fmt.Errorf("%w: %s", ErrTranscodeUnavailable, ext)
	}

	streamer, format, err := Decode(inputPath)
	if err != nil {
		return "", fmt.Errorf("transcode %s: %w", filepath.Base(inputPath), err)
	}
	defer streamer.Close()

	var src beep.Streamer = streamer
	if format.SampleRate != targetSampleRate {
		src = beep.Resample(4, format.SampleRate, targetSampleRate, streamer)
	}

	outPath := t.tempPath()
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}

	outFormat := beep.Format{
		SampleRate:  targetSampleRate,
		NumChannels: targetChannels,
		Precision:   targetPrecision,
	}

	if err := wav.Encode(out, src, outFormat); err != nil {
		out.Close()
		os.Remove(outPath)
		return "", fmt.Errorf("transcode %s: encode: %w", filepath.Base(inputPath), err)
	}
	if err := out.Close(); err != nil {
		os.Remove(outPath)
		return "", err
	}

	return outPath, nil
}

// tempPath returns a fresh output path, time-seeded like the rest of the
// temp file family so orphans are recognizable.
func (t *Transcoder) tempPath() string {
	dir := t.dir
	if dir == "" {
		dir = os.TempDir()
	}
	name := fmt.Sprintf("temp_audio_%d.wav", time.Now().Unix())
	if n := serial.Add(1); n > 1 {
		// Same-second collisions get a suffix; first caller keeps the
		// original pattern.
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			name = fmt.Sprintf("temp_audio_%d_%d.wav", time.Now().Unix(), n)
		}
	}
	return filepath.Join(dir, name)
}
