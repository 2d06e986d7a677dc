package transcode

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/stretchr/testify/require"
)

// writeTestWAV creates a short WAV file with the given format.
func writeTestWAV(t *testing.T, path string, format beep.Format, frames int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, wav.Encode(f, beep.Silence(frames), format))
}

func TestTranscode_NormalizesWAV(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.wav")
	writeTestWAV(t, input, beep.Format{
		SampleRate:  22050,
		NumChannels: 2,
		Precision:   2,
	}, 22050) // one second

	tr := NewTranscoder(dir)
	outPath, err := tr.Transcode(input)
	require.NoError(t, err)
	defer os.Remove(outPath)

	require.True(t, strings.HasPrefix(filepath.Base(outPath), "temp_audio_"),
		"output name %q should use the temp_audio_ pattern", filepath.Base(outPath))
	require.Equal(t, ".wav", filepath.Ext(outPath))

	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close()

	streamer, format, err := wav.Decode(f)
	require.NoError(t, err)
	defer streamer.Close()

	require.Equal(t, beep.SampleRate(44100), format.SampleRate)
	require.Equal(t, 2, format.NumChannels)
	require.Equal(t, 2, format.Precision)

	// Resampling 22050 -> 44100 should roughly double the frame count.
	require.InDelta(t, 44100, streamer.Len(), 2500)
}

func TestTranscode_UniqueOutputs(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.wav")
	writeTestWAV(t, input, beep.Format{
		SampleRate:  44100,
		NumChannels: 2,
		Precision:   2,
	}, 100)

	tr := NewTranscoder(dir)

	first, err := tr.Transcode(input)
	require.NoError(t, err)
	defer os.Remove(first)

	second, err := tr.Transcode(input)
	require.NoError(t, err)
	defer os.Remove(second)

	require.NotEqual(t, first, second, "each call must produce a fresh path")
}

func TestTranscode_UnknownExtension(t *testing.T) {
	tr := NewTranscoder(t.TempDir())

	_, err := tr.Transcode("/nowhere/file.xyz")
	require.ErrorIs(t, err, ErrTranscodeUnavailable)
}

func TestTranscode_MissingFile(t *testing.T) {
	tr := NewTranscoder(t.TempDir())

	_, err := tr.Transcode(filepath.Join(t.TempDir(), "missing.mp3"))
	require.Error(t, err)
}
