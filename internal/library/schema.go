package library

import (
	"database/sql"
)

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS songs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT,
			artist TEXT,
			album TEXT,
			year TEXT,
			genre TEXT,
			duration REAL,
			path TEXT UNIQUE,
			album_art BLOB,
			date_added TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			source TEXT DEFAULT 'local',
			youtube_url TEXT,
			youtube_id TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_songs_artist_album ON songs(artist, album);

		CREATE TABLE IF NOT EXISTS playlists (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE,
			description TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS playlist_songs (
			playlist_id INTEGER NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
			song_id INTEGER NOT NULL REFERENCES songs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_playlist_songs ON playlist_songs(playlist_id, position);

		CREATE TABLE IF NOT EXISTS player_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			volume INTEGER NOT NULL DEFAULT 70,
			muted INTEGER NOT NULL DEFAULT 0
		);
	`)
	return err
}
