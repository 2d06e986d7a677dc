package download

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/mgoujon/aria/internal/tags"
)

var percentRe = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)

// CleanURL normalizes a YouTube link to the canonical watch URL. Short
// youtu.be links and URLs with extra query parameters (playlists, time
// offsets) are reduced to the bare video. Anything unrecognized passes
// through untouched.
func CleanURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	switch host {
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		if id := u.Query().Get("v"); id != "" {
			return "https://www.youtube.com/watch?v=" + id
		}
	case "youtu.be":
		if id := strings.Trim(u.Path, "/"); id != "" {
			return "https://www.youtube.com/watch?v=" + id
		}
	}
	return raw
}

// videoID extracts the video id from a cleaned watch URL, or "" when the
// URL has no recognizable id.
func videoID(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Query().Get("v")
}

// Run executes one job synchronously, updating its status as it goes.
// Progress events are sent on the channel when non-nil.
func (m *Manager) Run(ctx context.Context, job *Job, progress chan<- Event) (*Result, error) {
	m.setStatus(job.ID, StatusDownloading, "")
	res, err := m.run(ctx, job, progress)
	if err != nil {
		m.setStatus(job.ID, StatusFailed, err.Error())
		return nil, err
	}
	m.setStatus(job.ID, StatusCompleted, "")
	return res, nil
}

func (m *Manager) run(ctx context.Context, job *Job, progress chan<- Event) (*Result, error) {
	started := time.Now()
	id := videoID(job.URL)

	args := []string{
		"--format", "bestaudio/best",
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", "192",
		"--output", filepath.Join(m.dir, "%(uploader)s", "%(title)s.%(ext)s"),
		"--write-thumbnail",
		"--write-info-json",
		"--no-playlist",
		"--embed-metadata",
		"--ignore-errors",
		"--restrict-filenames",
	}
	if !m.verbose {
		args = append(args, "--quiet", "--progress")
	}
	args = append(args, job.URL)

	cmd := exec.CommandContext(ctx, m.ytdlp, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", m.ytdlp, err)
	}

	emit := func(msg string, pct int) {
		if progress == nil {
			return
		}
		select {
		case progress <- Event{JobID: job.ID, Message: msg, Percent: pct}:
		default:
		}
	}

	emit("starting download", 5)
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		if m.verbose {
			m.log.Debug("yt-dlp", "line", line)
		}
		if msg, pct, ok := parseProgressLine(line); ok {
			emit(msg, pct)
		}
	}

	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("yt-dlp failed: %w", err)
	}
	emit("locating files", 90)

	mp3, infoJSON, thumb, err := m.findDownloadedFiles(id, started)
	if err != nil {
		return nil, err
	}
	meta, err := m.extractMetadata(mp3, infoJSON, thumb)
	if err != nil {
		return nil, err
	}
	if st, err := os.Stat(mp3); err == nil {
		m.log.Info("download complete",
			"title", meta.Title, "size", humanize.IBytes(uint64(st.Size())))
	}
	emit("done", 100)

	return &Result{
		JobID:      job.ID,
		MP3Path:    mp3,
		Meta:       meta,
		YoutubeURL: job.URL,
		YoutubeID:  id,
	}, nil
}

// parseProgressLine maps yt-dlp output lines to coarse progress. The
// download phase occupies 10-85, audio extraction lands at 85.
func parseProgressLine(line string) (string, int, bool) {
	switch {
	case strings.Contains(line, "[download]"):
		match := percentRe.FindStringSubmatch(line)
		if match == nil {
			return "", 0, false
		}
		var pct float64
		if _, err := fmt.Sscanf(match[1], "%f", &pct); err != nil {
			return "", 0, false
		}
		return "downloading", 10 + int(pct*0.75), true
	case strings.Contains(line, "[ExtractAudio]"):
		return "extracting audio", 85, true
	}
	return "", 0, false
}

type infoFile struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Uploader   string `json:"uploader"`
	UploadDate string `json:"upload_date"`
	Duration   int    `json:"duration"`
}

// findDownloadedFiles locates the mp3, info.json and thumbnail produced
// by a run. It prefers an info.json carrying the expected video id, then
// falls back to the newest mp3 written since the download started.
func (m *Manager) findDownloadedFiles(id string, since time.Time) (mp3, infoJSON, thumb string, err error) {
	var newestMP3 string
	var newestMod time.Time

	walkErr := filepath.WalkDir(m.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		switch {
		case strings.HasSuffix(path, ".info.json"):
			if info, err := readInfoFile(path); err == nil && id != "" && info.ID == id {
				infoJSON = path
			}
		case strings.HasSuffix(path, ".mp3"):
			fi, err := d.Info()
			if err == nil && fi.ModTime().After(since.Add(-time.Minute)) && fi.ModTime().After(newestMod) {
				newestMP3 = path
				newestMod = fi.ModTime()
			}
		}
		return nil
	})
	if walkErr != nil {
		return "", "", "", walkErr
	}

	if infoJSON != "" {
		base := strings.TrimSuffix(infoJSON, ".info.json")
		if _, err := os.Stat(base + ".mp3"); err == nil {
			mp3 = base + ".mp3"
		}
		for _, ext := range []string{".webp", ".jpg", ".png"} {
			if _, err := os.Stat(base + ext); err == nil {
				thumb = base + ext
				break
			}
		}
	}
	if mp3 == "" {
		mp3 = newestMP3
	}
	if mp3 == "" {
		return "", "", "", fmt.Errorf("no mp3 produced for %s", id)
	}
	return mp3, infoJSON, thumb, nil
}

func readInfoFile(path string) (*infoFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var info infoFile
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// extractMetadata builds catalog metadata from the info.json when
// present, falling back to filename-derived defaults.
func (m *Manager) extractMetadata(mp3, infoJSON, thumb string) (*tags.Metadata, error) {
	meta := &tags.Metadata{
		Path:   mp3,
		Title:  strings.TrimSuffix(filepath.Base(mp3), ".mp3"),
		Artist: tags.UnknownArtist,
		Album:  "YouTube Downloads",
	}

	if infoJSON != "" {
		if info, err := readInfoFile(infoJSON); err == nil {
			if info.Title != "" {
				meta.Title = info.Title
			}
			if info.Uploader != "" {
				meta.Artist = info.Uploader
				meta.Album = "YouTube - " + info.Uploader
			}
			if len(info.UploadDate) >= 4 {
				meta.Year = info.UploadDate[:4]
			}
			meta.DurationSeconds = float64(info.Duration)
		}
	}
	if thumb != "" {
		if art, err := os.ReadFile(thumb); err == nil {
			meta.AlbumArt = art
		}
	}
	if meta.DurationSeconds == 0 {
		if probed, err := tags.Read(mp3); err == nil {
			meta.DurationSeconds = probed.DurationSeconds
		}
	}
	return meta, nil
}
