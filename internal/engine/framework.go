package engine

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

// FrameworkDriver is the fallback backend. It carries only the stock WAV
// and MP3 codecs, so problematic formats reach it through the transcoding
// adapter's normalized intermediate.
type FrameworkDriver struct {
	beepDriver
}

// NewFramework constructs the framework driver. It takes no options.
func NewFramework(log *slog.Logger) (*FrameworkDriver, error) {
	if err := initOutput(defaultCacheMs); err != nil {
		return nil, err
	}

	return &FrameworkDriver{
		beepDriver: newBeepDriver("framework", decodeFramework, log),
	}, nil
}

func decodeFramework(path string) (beep.StreamSeekCloser, beep.Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".wav", ".mp3":
	default:
		return nil, beep.Format{}, &unsupportedFormatError{ext: ext}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, err
	}
	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	if ext == ".mp3" {
		streamer, format, err = mp3.Decode(f)
	} else {
		streamer, format, err = wav.Decode(f)
	}
	if err != nil {
		f.Close()
		return nil, beep.Format{}, err
	}
	return streamer, format, nil
}

type unsupportedFormatError struct {
	ext string
}

func (e *unsupportedFormatError) Error() string {
	return "framework engine does not support " + e.ext
}
