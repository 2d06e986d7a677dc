package download

import (
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	_ "modernc.org/sqlite"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testManager(t *testing.T) *Manager {
	t.Helper()
	database, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	mgr, err := New(database, "yt-dlp", t.TempDir(), false, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return mgr
}

func TestCleanURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PLx&t=42", "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ?t=30", "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		{"https://music.youtube.com/watch?v=abc123", "https://www.youtube.com/watch?v=abc123"},
		{"https://example.com/video", "https://example.com/video"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanURL(tt.in), tt.in)
	}
}

func TestVideoID(t *testing.T) {
	assert.Equal(t, "dQw4w9WgXcQ", videoID("https://www.youtube.com/watch?v=dQw4w9WgXcQ"))
	assert.Equal(t, "", videoID("https://example.com/video"))
}

func TestParseProgressLine(t *testing.T) {
	msg, pct, ok := parseProgressLine("[download]  42.5% of 3.50MiB at 1.20MiB/s ETA 00:02")
	require.True(t, ok)
	assert.Equal(t, "downloading", msg)
	assert.Equal(t, 41, pct) // 10 + floor(42.5 * 0.75)

	msg, pct, ok = parseProgressLine("[ExtractAudio] Destination: song.mp3")
	require.True(t, ok)
	assert.Equal(t, "extracting audio", msg)
	assert.Equal(t, 85, pct)

	_, _, ok = parseProgressLine("[info] Writing video metadata as JSON")
	assert.False(t, ok)

	_, _, ok = parseProgressLine("[download] Destination: song.webm")
	assert.False(t, ok)
}

func TestEnqueueAndJobs(t *testing.T) {
	mgr := testManager(t)

	job, err := mgr.Enqueue("https://youtu.be/abc123")
	require.NoError(t, err)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc123", job.URL)
	assert.Equal(t, StatusPending, job.Status)

	mgr.setStatus(job.ID, StatusFailed, "network error")

	jobs, err := mgr.Jobs()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, StatusFailed, jobs[0].Status)
	assert.Equal(t, "network error", jobs[0].Error)
}

func TestFindDownloadedFiles(t *testing.T) {
	mgr := testManager(t)
	dir := filepath.Join(mgr.dir, "Some_Uploader")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	base := filepath.Join(dir, "Some_Song")
	writeFile(t, base+".info.json", `{"id":"abc123","title":"Some Song","uploader":"Some Uploader","upload_date":"20240115","duration":245}`)
	writeFile(t, base+".mp3", "not really audio")
	writeFile(t, base+".webp", "not really an image")

	mp3, infoJSON, thumb, err := mgr.findDownloadedFiles("abc123", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, base+".mp3", mp3)
	assert.Equal(t, base+".info.json", infoJSON)
	assert.Equal(t, base+".webp", thumb)
}

func TestFindDownloadedFilesNewestMP3Fallback(t *testing.T) {
	mgr := testManager(t)
	writeFile(t, filepath.Join(mgr.dir, "orphan.mp3"), "not really audio")

	mp3, infoJSON, _, err := mgr.findDownloadedFiles("missing", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(mgr.dir, "orphan.mp3"), mp3)
	assert.Empty(t, infoJSON)
}

func TestFindDownloadedFilesNothingProduced(t *testing.T) {
	mgr := testManager(t)
	_, _, _, err := mgr.findDownloadedFiles("abc123", time.Now())
	assert.Error(t, err)
}

func TestExtractMetadata(t *testing.T) {
	mgr := testManager(t)
	dir := t.TempDir()

	info := filepath.Join(dir, "song.info.json")
	writeFile(t, info, `{"id":"abc123","title":"Some Song","uploader":"Some Uploader","upload_date":"20240115","duration":245}`)
	mp3 := filepath.Join(dir, "song.mp3")
	writeFile(t, mp3, "not really audio")
	thumb := filepath.Join(dir, "song.webp")
	writeFile(t, thumb, "thumbnail bytes")

	meta, err := mgr.extractMetadata(mp3, info, thumb)
	require.NoError(t, err)
	assert.Equal(t, "Some Song", meta.Title)
	assert.Equal(t, "Some Uploader", meta.Artist)
	assert.Equal(t, "YouTube - Some Uploader", meta.Album)
	assert.Equal(t, "2024", meta.Year)
	assert.Equal(t, float64(245), meta.DurationSeconds)
	assert.Equal(t, []byte("thumbnail bytes"), meta.AlbumArt)
}

func TestExtractMetadataDefaultsWithoutInfo(t *testing.T) {
	mgr := testManager(t)
	mp3 := filepath.Join(t.TempDir(), "Cool_Track.mp3")
	writeFile(t, mp3, "not really audio")

	meta, err := mgr.extractMetadata(mp3, "", "")
	require.NoError(t, err)
	assert.Equal(t, "Cool_Track", meta.Title)
	assert.Equal(t, "YouTube Downloads", meta.Album)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
