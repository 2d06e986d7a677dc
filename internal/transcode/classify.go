// Package transcode classifies audio formats and converts problematic ones
// to a normalized PCM WAV intermediate for maximum backend compatibility.
package transcode

import (
	"strings"
)

// Decision is the result of classifying a file extension.
type Decision int

const (
	// PassThrough means the file can be handed to a backend as-is.
	PassThrough Decision = iota
	// NeedsTranscode means the file should be converted to WAV first.
	NeedsTranscode
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case PassThrough:
		return "PassThrough"
	case NeedsTranscode:
		return "NeedsTranscode"
	default:
		return "Unknown"
	}
}

// Classifier maps file extensions to a conversion decision. The transcode
// set is configuration, not policy baked into callers.
type Classifier struct {
	transcodeExts map[string]struct{}
}

// DefaultTranscodeExts is the conservative default: containers whose audio
// coding some platform backends struggle with.
var DefaultTranscodeExts = []string{".m4a", ".ogg", ".flac"}

// NewClassifier builds a classifier for the given extension set. A nil or
// empty set falls back to DefaultTranscodeExts.
func NewClassifier(exts []string) *Classifier {
	if len(exts) == 0 {
		exts = DefaultTranscodeExts
	}
	m := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		m[e] = struct{}{}
	}
	return &Classifier{transcodeExts: m}
}

// Classify returns the conversion decision for a file extension.
// Unknown extensions pass through; no error path exists.
func (c *Classifier) Classify(ext string) Decision {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if _, ok := c.transcodeExts[ext]; ok {
		return NeedsTranscode
	}
	return PassThrough
}
