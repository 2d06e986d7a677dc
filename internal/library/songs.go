package library

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/mgoujon/aria/internal/db"
)

// updatableFields is the allow-list for UpdateSongField; anything else is
// rejected so field names never reach the SQL text unchecked.
var updatableFields = map[string]struct{}{
	"title":  {},
	"artist": {},
	"album":  {},
	"year":   {},
	"genre":  {},
}

// AddSong inserts a song, replacing any existing row with the same path.
// Returns the song id.
func (l *Library) AddSong(s *Song) (int64, error) {
	if s.Source == "" {
		s.Source = "local"
	}
	var id int64
	err := db.WithTx(l.db, func(tx *sql.Tx) error {
		// RETURNING yields the right id on the conflict-update path,
		// where LastInsertId would report a stale rowid.
		return tx.QueryRow(`
			INSERT INTO songs (title, artist, album, year, genre, duration, path, album_art, source, youtube_url, youtube_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				title = excluded.title,
				artist = excluded.artist,
				album = excluded.album,
				year = excluded.year,
				genre = excluded.genre,
				duration = excluded.duration,
				album_art = excluded.album_art,
				source = excluded.source,
				youtube_url = excluded.youtube_url,
				youtube_id = excluded.youtube_id
			RETURNING id
		`, s.Title, s.Artist, s.Album, s.Year, s.Genre, s.DurationSeconds,
			s.Path, s.AlbumArt, s.Source, s.YoutubeURL, s.YoutubeID).Scan(&id)
	})
	if err != nil {
		return 0, err
	}
	s.ID = id
	return id, nil
}

// SongByPath looks a song up by its file path.
func (l *Library) SongByPath(path string) (*Song, error) {
	row := l.db.QueryRow(songSelect+` WHERE path = ?`, path)
	return scanSong(row)
}

// AllSongs returns the catalog ordered by artist, album, title.
func (l *Library) AllSongs() ([]Song, error) {
	return l.querySongs(songSelect + ` ORDER BY artist, album, title`)
}

// Search matches a substring against title, artist, and album.
func (l *Library) Search(query string) ([]Song, error) {
	like := "%" + query + "%"
	return l.querySongs(songSelect+`
		WHERE title LIKE ? OR artist LIKE ? OR album LIKE ?
		ORDER BY artist, album, title`, like, like, like)
}

// RemoveSong deletes a song; playlist references cascade.
func (l *Library) RemoveSong(id int64) error {
	return db.WithTx(l.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM playlist_songs WHERE song_id = ?`, id); err != nil {
			return err
		}
		_, err := tx.Exec(`DELETE FROM songs WHERE id = ?`, id)
		return err
	})
}

// UpdateSongField updates one allow-listed metadata field.
func (l *Library) UpdateSongField(id int64, field, value string) error {
	if _, ok := updatableFields[field]; !ok {
		return fmt.Errorf("library: field %q is not updatable", field)
	}
	_, err := l.db.Exec(
		fmt.Sprintf(`UPDATE songs SET %s = ? WHERE id = ?`, field), value, id)
	return err
}

// CleanupMissing removes songs whose files no longer exist on disk and
// returns how many were dropped.
func (l *Library) CleanupMissing() (int, error) {
	rows, err := l.db.Query(`SELECT id, path FROM songs`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	type entry struct {
		id   int64
		path string
	}
	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.id, &e.path); err != nil {
			return 0, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if _, err := os.Stat(e.path); err == nil {
			continue
		}
		if err := l.RemoveSong(e.id); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

const songSelect = `
	SELECT id, title, artist, album, year, genre, duration, path, album_art, date_added, source, youtube_url, youtube_id
	FROM songs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSong(row rowScanner) (*Song, error) {
	var s Song
	var year, genre, dateAdded, source, ytURL, ytID sql.NullString
	var duration sql.NullFloat64
	err := row.Scan(&s.ID, &s.Title, &s.Artist, &s.Album, &year, &genre,
		&duration, &s.Path, &s.AlbumArt, &dateAdded, &source, &ytURL, &ytID)
	if err != nil {
		return nil, err
	}
	s.Year = db.NullStringValue(year)
	s.Genre = db.NullStringValue(genre)
	s.DurationSeconds = db.NullFloat64Value(duration)
	s.DateAdded = db.NullStringValue(dateAdded)
	s.Source = db.NullStringValue(source)
	s.YoutubeURL = db.NullStringValue(ytURL)
	s.YoutubeID = db.NullStringValue(ytID)
	return &s, nil
}

func (l *Library) querySongs(query string, args ...any) ([]Song, error) {
	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var songs []Song
	for rows.Next() {
		s, err := scanSong(rows)
		if err != nil {
			return nil, err
		}
		songs = append(songs, *s)
	}
	return songs, rows.Err()
}
