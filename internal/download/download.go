// Package download fetches audio from YouTube through yt-dlp and turns
// the result into catalog-ready metadata.
package download

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mgoujon/aria/internal/db"
	"github.com/mgoujon/aria/internal/tags"
)

// Status constants for download jobs.
const (
	StatusPending     = "pending"
	StatusDownloading = "downloading"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
)

// Job is one tracked download.
type Job struct {
	ID        int64
	URL       string
	Status    string
	Error     string
	CreatedAt string
}

// Event is a progress update for a running job.
type Event struct {
	JobID   int64
	Message string
	Percent int // 0-100
}

// Result is a finished download: the produced file plus metadata for the
// caller to organize and catalog.
type Result struct {
	JobID      int64
	MP3Path    string
	Meta       *tags.Metadata
	YoutubeURL string
	YoutubeID  string
}

// Manager runs yt-dlp jobs and tracks them in the catalog database.
type Manager struct {
	db      *sql.DB
	ytdlp   string
	dir     string // "<music folder>/YouTube Downloads"
	verbose bool
	log     *slog.Logger
}

// New creates a download manager. The downloads folder is created under
// the music folder.
func New(database *sql.DB, ytdlpPath, musicFolder string, verbose bool, log *slog.Logger) (*Manager, error) {
	dir := filepath.Join(musicFolder, "YouTube Downloads")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if err := initSchema(database); err != nil {
		return nil, err
	}
	return &Manager{
		db:      database,
		ytdlp:   ytdlpPath,
		dir:     dir,
		verbose: verbose,
		log:     log,
	}, nil
}

func initSchema(database *sql.DB) error {
	_, err := database.Exec(`
		CREATE TABLE IF NOT EXISTS downloads (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			url TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			error TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

// Enqueue records a new pending job.
func (m *Manager) Enqueue(url string) (*Job, error) {
	job := &Job{URL: CleanURL(url), Status: StatusPending}
	err := db.WithTx(m.db, func(tx *sql.Tx) error {
		res, err := tx.Exec(
			`INSERT INTO downloads (url, status) VALUES (?, ?)`, job.URL, job.Status)
		if err != nil {
			return err
		}
		job.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Jobs lists all tracked downloads, newest first.
func (m *Manager) Jobs() ([]Job, error) {
	rows, err := m.db.Query(`
		SELECT id, url, status, error, created_at FROM downloads ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		var errMsg, created sql.NullString
		if err := rows.Scan(&j.ID, &j.URL, &j.Status, &errMsg, &created); err != nil {
			return nil, err
		}
		j.Error = db.NullStringValue(errMsg)
		j.CreatedAt = db.NullStringValue(created)
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (m *Manager) setStatus(id int64, status, errMsg string) {
	if _, err := m.db.Exec(
		`UPDATE downloads SET status = ?, error = ? WHERE id = ?`, status, errMsg, id); err != nil {
		m.log.Warn("could not update download status", "job", id, "error", err)
	}
}

// Go runs the job on its own goroutine. Progress events arrive on the
// given channel (nil to skip); the returned channel delivers the single
// outcome and is then closed.
func (m *Manager) Go(ctx context.Context, job *Job, progress chan<- Event) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		res, err := m.Run(ctx, job, progress)
		out <- Outcome{Result: res, Err: err}
	}()
	return out
}

// Outcome is a completed job: a result or an error.
type Outcome struct {
	Result *Result
	Err    error
}
