package library

import (
	"bytes"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestWAV(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	format := beep.Format{SampleRate: 44100, NumChannels: 2, Precision: 2}
	require.NoError(t, wav.Encode(f, beep.Silence(4410), format))
}

func TestImportScansDirectory(t *testing.T) {
	l := testLibrary(t)
	dir := t.TempDir()
	writeTestWAV(t, filepath.Join(dir, "one.wav"))
	writeTestWAV(t, filepath.Join(dir, "sub", "two.wav"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	progress := make(chan ImportProgress, 64)
	imported, err := l.Import([]string{dir}, nil, progress)
	require.NoError(t, err)
	assert.Equal(t, 2, imported)

	songs, err := l.AllSongs()
	require.NoError(t, err)
	assert.Len(t, songs, 2)

	var phases []string
	for p := range progress {
		phases = append(phases, p.Phase)
	}
	require.NotEmpty(t, phases)
	assert.Equal(t, "scanning", phases[0])
	assert.Equal(t, "done", phases[len(phases)-1])
}

func TestImportSkipsAlreadyCataloged(t *testing.T) {
	l := testLibrary(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "one.wav")
	writeTestWAV(t, path)

	imported, err := l.Import([]string{path}, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 1, imported)

	imported, err = l.Import([]string{path}, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, imported)
}

func TestImportMissingPath(t *testing.T) {
	l := testLibrary(t)
	_, err := l.Import([]string{filepath.Join(t.TempDir(), "nope")}, nil, nil)
	require.Error(t, err)
}

func TestThumbnailArtShrinksLargeImages(t *testing.T) {
	big := image.NewRGBA(image.Rect(0, 0, 1200, 900))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, big, nil))

	out := thumbnailArt(buf.Bytes())
	require.NotEmpty(t, out)

	img, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.LessOrEqual(t, img.Bounds().Dx(), maxArtDimension)
	assert.LessOrEqual(t, img.Bounds().Dy(), maxArtDimension)
}

func TestThumbnailArtPassesSmallAndInvalid(t *testing.T) {
	small := image.NewRGBA(image.Rect(0, 0, 64, 64))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, small, nil))

	assert.Equal(t, buf.Bytes(), thumbnailArt(buf.Bytes()))
	assert.Equal(t, []byte("not an image"), thumbnailArt([]byte("not an image")))
	assert.Nil(t, thumbnailArt(nil))
}
