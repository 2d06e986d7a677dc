package library

import (
	"database/sql"
	"errors"
)

// SaveVolume persists the volume level and mute flag.
func (l *Library) SaveVolume(volume int, muted bool) error {
	_, err := l.db.Exec(`
		INSERT INTO player_state (id, volume, muted) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET volume = excluded.volume, muted = excluded.muted`,
		volume, muted)
	return err
}

// LoadVolume returns the persisted volume and mute flag; defaults when no
// state has been saved yet.
func (l *Library) LoadVolume() (volume int, muted bool, err error) {
	err = l.db.QueryRow(`SELECT volume, muted FROM player_state WHERE id = 1`).
		Scan(&volume, &muted)
	if errors.Is(err, sql.ErrNoRows) {
		return 70, false, nil
	}
	return volume, muted, err
}
