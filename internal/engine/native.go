package engine

import (
	"log/slog"

	"github.com/mgoujon/aria/internal/stderr"
	"github.com/mgoujon/aria/internal/transcode"
)

// NativeDriver is the primary backend: the full specialized decode stack
// (MP3, FLAC, Vorbis, AAC/ALAC, WAV) feeding the shared speaker output.
type NativeDriver struct {
	beepDriver
	opts Options
}

// NewNative constructs the native driver. This is the only operation on
// the driver that fails hard; the selector catches it and falls back.
func NewNative(opts Options, log *slog.Logger) (*NativeDriver, error) {
	if opts.Quiet {
		// Best effort: playback works fine without capture.
		if err := stderr.Start(); err != nil {
			log.Debug("stderr capture unavailable", "error", err)
		}
	}
	if opts.AudioOutput != "" {
		// The output layer picks the platform default sink; record the
		// configured name so a mismatch is diagnosable.
		log.Debug("audio output configured", "sink", opts.AudioOutput)
	}

	if err := initOutput(opts.CacheMs); err != nil {
		return nil, err
	}

	d := &NativeDriver{
		beepDriver: newBeepDriver("native", transcode.Decode, log),
		opts:       opts,
	}
	return d, nil
}
