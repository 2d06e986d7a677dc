// Package library is the persistent song catalog: songs, playlists, and
// the bits of player state that survive restarts.
package library

import (
	"database/sql"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite"
)

// Song is one catalog row.
type Song struct {
	ID              int64
	Title           string
	Artist          string
	Album           string
	Year            string
	Genre           string
	DurationSeconds float64
	Path            string
	AlbumArt        []byte
	DateAdded       string
	Source          string // "local" or "youtube"
	YoutubeURL      string
	YoutubeID       string
}

// Playlist is a named, ordered song collection.
type Playlist struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   string
}

// Library wraps the catalog database.
type Library struct {
	db *sql.DB
}

// DefaultPath returns the XDG data location for the catalog database.
func DefaultPath() (string, error) {
	return xdg.DataFile(filepath.Join("aria", "aria.db"))
}

// Open opens (creating if needed) the catalog at path. An empty path uses
// the default XDG location.
func Open(path string) (*Library, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Library{db: db}, nil
}

// NewWithDB wraps an existing database handle; the schema must already be
// initialized. Used by tests.
func NewWithDB(db *sql.DB) *Library {
	return &Library{db: db}
}

// DB exposes the underlying database for collaborators that keep their
// own tables alongside the catalog.
func (l *Library) DB() *sql.DB {
	return l.db
}

// Close closes the underlying database.
func (l *Library) Close() error {
	return l.db.Close()
}
