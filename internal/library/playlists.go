package library

import (
	"database/sql"

	"github.com/mgoujon/aria/internal/db"
)

// CreatePlaylist makes a new empty playlist and returns its id. Names are
// unique; creating an existing name fails.
func (l *Library) CreatePlaylist(name, description string) (int64, error) {
	var id int64
	err := db.WithTx(l.db, func(tx *sql.Tx) error {
		res, err := tx.Exec(
			`INSERT INTO playlists (name, description) VALUES (?, ?)`,
			name, description)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// Playlists returns all playlists ordered by name.
func (l *Library) Playlists() ([]Playlist, error) {
	rows, err := l.db.Query(`
		SELECT id, name, description, created_at FROM playlists ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var playlists []Playlist
	for rows.Next() {
		var p Playlist
		var desc, created sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &desc, &created); err != nil {
			return nil, err
		}
		p.Description = db.NullStringValue(desc)
		p.CreatedAt = db.NullStringValue(created)
		playlists = append(playlists, p)
	}
	return playlists, rows.Err()
}

// AddToPlaylist appends a song at the next free position.
func (l *Library) AddToPlaylist(playlistID, songID int64) error {
	return db.WithTx(l.db, func(tx *sql.Tx) error {
		var maxPos sql.NullInt64
		err := tx.QueryRow(
			`SELECT MAX(position) FROM playlist_songs WHERE playlist_id = ?`,
			playlistID).Scan(&maxPos)
		if err != nil {
			return err
		}
		next := int64(0)
		if maxPos.Valid {
			next = maxPos.Int64 + 1
		}
		_, err = tx.Exec(
			`INSERT INTO playlist_songs (playlist_id, song_id, position) VALUES (?, ?, ?)`,
			playlistID, songID, next)
		return err
	})
}

// PlaylistSongs returns a playlist's songs in position order.
func (l *Library) PlaylistSongs(playlistID int64) ([]Song, error) {
	return l.querySongs(`
		SELECT s.id, s.title, s.artist, s.album, s.year, s.genre, s.duration,
		       s.path, s.album_art, s.date_added, s.source, s.youtube_url, s.youtube_id
		FROM songs s
		JOIN playlist_songs ps ON ps.song_id = s.id
		WHERE ps.playlist_id = ?
		ORDER BY ps.position`, playlistID)
}

// RemoveFromPlaylist drops a song from a playlist, leaving position gaps
// as they are.
func (l *Library) RemoveFromPlaylist(playlistID, songID int64) error {
	_, err := l.db.Exec(
		`DELETE FROM playlist_songs WHERE playlist_id = ? AND song_id = ?`,
		playlistID, songID)
	return err
}
