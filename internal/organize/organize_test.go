package organize

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgoujon/aria/internal/tags"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"AC/DC", "ACDC"},
		{`Song: "Title"?`, "Song Title"},
		{`a<b>c|d*e`, "abcde"},
		{"  .trimmed. ", "trimmed"},
		{"", "Unknown"},
		{"///", "Unknown"},
		{"Norma\\l Name", "Normal Name"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Sanitize(tt.in), "Sanitize(%q)", tt.in)
	}
}

func TestPlanArtistAlbum(t *testing.T) {
	root := t.TempDir()
	o := New(root, StructureArtistAlbum, true, discardLogger())

	meta := &tags.Metadata{Title: "Song One", Artist: "The Band", Album: "First Album"}
	got := o.Plan(meta, "/downloads/song one.mp3")
	assert.Equal(t, filepath.Join(root, "The Band", "First Album", "Song One.mp3"), got)
}

func TestPlanArtistYearAlbum(t *testing.T) {
	root := t.TempDir()
	o := New(root, StructureArtistYearAlbum, true, discardLogger())

	meta := &tags.Metadata{Title: "Song", Artist: "Band", Album: "Album", Year: "1999"}
	got := o.Plan(meta, "/x/song.flac")
	assert.Equal(t, filepath.Join(root, "Band", "1999", "Album", "Song.flac"), got)

	meta.Year = ""
	got = o.Plan(meta, "/x/song.flac")
	assert.Equal(t, filepath.Join(root, "Band", "Unknown Year", "Album", "Song.flac"), got)
}

func TestPlanAlbumOnly(t *testing.T) {
	root := t.TempDir()
	o := New(root, StructureAlbum, true, discardLogger())

	meta := &tags.Metadata{Title: "Song", Artist: "Band", Album: "Album"}
	assert.Equal(t, filepath.Join(root, "Album", "Song.ogg"), o.Plan(meta, "/x/song.ogg"))
}

func TestPlanKeepsOriginalExtension(t *testing.T) {
	root := t.TempDir()
	o := New(root, StructureArtistAlbum, true, discardLogger())

	// The title carries the source filename including its extension when
	// the file had no title tag; the plan must not double it up.
	meta := &tags.Metadata{Title: "track.m4a", Artist: "Band", Album: "Album"}
	got := o.Plan(meta, "/x/track.m4a")
	assert.Equal(t, filepath.Join(root, "Band", "Album", "track.m4a"), got)
}

func TestPlanDuplicateSuffix(t *testing.T) {
	root := t.TempDir()
	o := New(root, StructureArtistAlbum, true, discardLogger())
	meta := &tags.Metadata{Title: "Song", Artist: "Band", Album: "Album"}

	dir := filepath.Join(root, "Band", "Album")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Song.mp3"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Song (1).mp3"), nil, 0o644))

	got := o.Plan(meta, "/x/song.mp3")
	assert.Equal(t, filepath.Join(dir, "Song (2).mp3"), got)
}

func TestPlaceCopiesFile(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(t.TempDir(), "source.mp3")
	require.NoError(t, os.WriteFile(src, []byte("audio bytes"), 0o644))

	o := New(root, StructureArtistAlbum, true, discardLogger())
	meta := &tags.Metadata{Title: "Song", Artist: "Band", Album: "Album"}

	final, err := o.Place(meta, src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "Band", "Album", "Song.mp3"), final)

	data, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, []byte("audio bytes"), data)

	// Source stays in place.
	_, err = os.Stat(src)
	assert.NoError(t, err)
}

func TestPlaceMovesFileWhenCopyDisabled(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(t.TempDir(), "source.mp3")
	require.NoError(t, os.WriteFile(src, []byte("audio bytes"), 0o644))

	o := New(root, StructureArtistAlbum, false, discardLogger())
	meta := &tags.Metadata{Title: "Song", Artist: "Band", Album: "Album"}

	final, err := o.Place(meta, src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "Band", "Album", "Song.mp3"), final)

	data, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, []byte("audio bytes"), data)

	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
}

func TestNewFallsBackToArtistAlbum(t *testing.T) {
	root := t.TempDir()
	o := New(root, "something/else", true, discardLogger())
	meta := &tags.Metadata{Title: "S", Artist: "A", Album: "B"}
	assert.Equal(t, filepath.Join(root, "A", "B", "S.mp3"), o.Plan(meta, "/x/s.mp3"))
}
