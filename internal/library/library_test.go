package library

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func testLibrary(t *testing.T) *Library {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, initSchema(db))
	return NewWithDB(db)
}

func sampleSong(path string) *Song {
	return &Song{
		Title:           "Title",
		Artist:          "Artist",
		Album:           "Album",
		Year:            "2001",
		Genre:           "Rock",
		DurationSeconds: 183.5,
		Path:            path,
	}
}

func TestAddSongAndLookup(t *testing.T) {
	l := testLibrary(t)

	id, err := l.AddSong(sampleSong("/music/a.mp3"))
	require.NoError(t, err)
	assert.Positive(t, id)

	got, err := l.SongByPath("/music/a.mp3")
	require.NoError(t, err)
	assert.Equal(t, "Title", got.Title)
	assert.Equal(t, "local", got.Source)
	assert.InDelta(t, 183.5, got.DurationSeconds, 0.001)
	assert.NotEmpty(t, got.DateAdded)
}

func TestAddSongUpsertsByPath(t *testing.T) {
	l := testLibrary(t)

	first, err := l.AddSong(sampleSong("/music/a.mp3"))
	require.NoError(t, err)

	// An unrelated insert in between shifts the connection's last rowid.
	_, err = l.AddSong(sampleSong("/music/other.mp3"))
	require.NoError(t, err)

	updated := sampleSong("/music/a.mp3")
	updated.Title = "Corrected Title"
	again, err := l.AddSong(updated)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	song, err := l.SongByPath("/music/a.mp3")
	require.NoError(t, err)
	assert.Equal(t, first, song.ID)
	assert.Equal(t, "Corrected Title", song.Title)
}

func TestAllSongsOrdering(t *testing.T) {
	l := testLibrary(t)
	for _, s := range []*Song{
		{Title: "Zeta", Artist: "Beta", Album: "A", Path: "/m/1.mp3"},
		{Title: "Alpha", Artist: "Beta", Album: "A", Path: "/m/2.mp3"},
		{Title: "Mid", Artist: "Alpha", Album: "B", Path: "/m/3.mp3"},
	} {
		_, err := l.AddSong(s)
		require.NoError(t, err)
	}

	songs, err := l.AllSongs()
	require.NoError(t, err)
	require.Len(t, songs, 3)
	assert.Equal(t, "Alpha", songs[0].Artist)
	assert.Equal(t, "Alpha", songs[1].Title)
	assert.Equal(t, "Zeta", songs[2].Title)
}

func TestSearch(t *testing.T) {
	l := testLibrary(t)
	_, err := l.AddSong(&Song{Title: "Blue Sky", Artist: "Weather", Album: "Forecast", Path: "/m/1.mp3"})
	require.NoError(t, err)
	_, err = l.AddSong(&Song{Title: "Red Sun", Artist: "Sky Watchers", Album: "Dawn", Path: "/m/2.mp3"})
	require.NoError(t, err)

	byTitle, err := l.Search("blue")
	require.NoError(t, err)
	require.Len(t, byTitle, 1)
	assert.Equal(t, "Blue Sky", byTitle[0].Title)

	byAnything, err := l.Search("Sky")
	require.NoError(t, err)
	assert.Len(t, byAnything, 2)

	none, err := l.Search("polka")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRemoveSongCascades(t *testing.T) {
	l := testLibrary(t)
	songID, err := l.AddSong(sampleSong("/m/1.mp3"))
	require.NoError(t, err)

	plID, err := l.CreatePlaylist("Favorites", "")
	require.NoError(t, err)
	require.NoError(t, l.AddToPlaylist(plID, songID))

	require.NoError(t, l.RemoveSong(songID))

	songs, err := l.PlaylistSongs(plID)
	require.NoError(t, err)
	assert.Empty(t, songs)
}

func TestUpdateSongField(t *testing.T) {
	l := testLibrary(t)
	id, err := l.AddSong(sampleSong("/m/1.mp3"))
	require.NoError(t, err)

	require.NoError(t, l.UpdateSongField(id, "artist", "New Artist"))
	got, err := l.SongByPath("/m/1.mp3")
	require.NoError(t, err)
	assert.Equal(t, "New Artist", got.Artist)

	err = l.UpdateSongField(id, "path; DROP TABLE songs", "x")
	require.Error(t, err)
	err = l.UpdateSongField(id, "duration", "0")
	require.Error(t, err, "duration is not in the editable set")
}

func TestCleanupMissing(t *testing.T) {
	l := testLibrary(t)
	dir := t.TempDir()

	kept := filepath.Join(dir, "kept.mp3")
	require.NoError(t, os.WriteFile(kept, []byte("x"), 0o644))
	_, err := l.AddSong(sampleSong(kept))
	require.NoError(t, err)
	_, err = l.AddSong(sampleSong(filepath.Join(dir, "gone.mp3")))
	require.NoError(t, err)

	removed, err := l.CleanupMissing()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	songs, err := l.AllSongs()
	require.NoError(t, err)
	require.Len(t, songs, 1)
	assert.Equal(t, kept, songs[0].Path)
}

func TestPlaylistPositions(t *testing.T) {
	l := testLibrary(t)
	plID, err := l.CreatePlaylist("Mix", "test playlist")
	require.NoError(t, err)

	var ids []int64
	for _, p := range []string{"/m/1.mp3", "/m/2.mp3", "/m/3.mp3"} {
		id, err := l.AddSong(sampleSong(p))
		require.NoError(t, err)
		ids = append(ids, id)
		require.NoError(t, l.AddToPlaylist(plID, id))
	}

	songs, err := l.PlaylistSongs(plID)
	require.NoError(t, err)
	require.Len(t, songs, 3)
	assert.Equal(t, "/m/1.mp3", songs[0].Path)
	assert.Equal(t, "/m/3.mp3", songs[2].Path)

	require.NoError(t, l.RemoveFromPlaylist(plID, ids[1]))
	songs, err = l.PlaylistSongs(plID)
	require.NoError(t, err)
	require.Len(t, songs, 2)
}

func TestCreatePlaylistDuplicateName(t *testing.T) {
	l := testLibrary(t)
	_, err := l.CreatePlaylist("Mix", "")
	require.NoError(t, err)
	_, err = l.CreatePlaylist("Mix", "")
	require.Error(t, err)
}

func TestVolumePersistence(t *testing.T) {
	l := testLibrary(t)

	volume, muted, err := l.LoadVolume()
	require.NoError(t, err)
	assert.Equal(t, 70, volume)
	assert.False(t, muted)

	require.NoError(t, l.SaveVolume(35, true))
	volume, muted, err = l.LoadVolume()
	require.NoError(t, err)
	assert.Equal(t, 35, volume)
	assert.True(t, muted)

	require.NoError(t, l.SaveVolume(80, false))
	volume, muted, err = l.LoadVolume()
	require.NoError(t, err)
	assert.Equal(t, 80, volume)
	assert.False(t, muted)
}

func TestOpenCreatesFileAndSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "aria.db")
	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()

	_, err = l.AddSong(sampleSong("/m/1.mp3"))
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}
