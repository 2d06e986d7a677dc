// Package tags extracts metadata from music files. dhowden/tag does the
// bulk of the work; TagLib covers the files it chokes on.
package tags

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dhowden/tag"
	"go.senan.xyz/taglib"
)

// File extensions supported by the tags package.
const (
	ExtMP3  = ".mp3"
	ExtFLAC = ".flac"
	ExtOGG  = ".ogg"
	ExtOGA  = ".oga"
	ExtM4A  = ".m4a"
	ExtMP4  = ".mp4"
	ExtWAV  = ".wav"
)

// Fallback values for files with missing or unreadable tags.
const (
	UnknownArtist = "Unknown Artist"
	UnknownAlbum  = "Unknown Album"
)

// Metadata is the tag and stream information the catalog stores per song.
type Metadata struct {
	Path            string
	Title           string
	Artist          string
	Album           string
	Year            string
	Genre           string
	DurationSeconds float64
	AlbumArt        []byte
}

// Supported reports whether the extension is a format this package reads.
func Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ExtMP3, ExtFLAC, ExtOGG, ExtOGA, ExtM4A, ExtMP4, ExtWAV:
		return true
	}
	return false
}

// Read extracts metadata from a music file. Missing fields fall back to
// the filename and the Unknown placeholders; a file whose tags cannot be
// parsed at all still yields usable metadata as long as it exists.
func Read(path string) (*Metadata, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	m := &Metadata{
		Path:   path,
		Title:  filepath.Base(path),
		Artist: UnknownArtist,
		Album:  UnknownAlbum,
	}

	if err := readDhowden(path, m); err != nil {
		// dhowden/tag has trouble with some UTF-16 ID3 tags and some
		// ffmpeg-created M4A files; TagLib reads those fine.
		readTaglib(path, m)
	}

	if dur, err := readDuration(path); err == nil && dur > 0 {
		m.DurationSeconds = dur.Seconds()
	}

	return m, nil
}

func readDhowden(path string, m *Metadata) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	t, err := tag.ReadFrom(f)
	if err != nil {
		return err
	}

	if v := strings.TrimSpace(t.Title()); v != "" {
		m.Title = v
	}
	if v := strings.TrimSpace(t.Artist()); v != "" {
		m.Artist = v
	}
	if v := strings.TrimSpace(t.Album()); v != "" {
		m.Album = v
	}
	if y := t.Year(); y != 0 {
		m.Year = strconv.Itoa(y)
	}
	m.Genre = strings.TrimSpace(t.Genre())

	if pic := t.Picture(); pic != nil && len(pic.Data) > 0 {
		m.AlbumArt = pic.Data
	}
	return nil
}

func readTaglib(path string, m *Metadata) {
	raw, err := taglib.ReadTags(path)
	if err != nil {
		return
	}
	get := func(key string) string {
		if vs := raw[key]; len(vs) > 0 {
			return strings.TrimSpace(vs[0])
		}
		return ""
	}

	if v := get(taglib.Title); v != "" {
		m.Title = v
	}
	if v := get(taglib.Artist); v != "" {
		m.Artist = v
	}
	if v := get(taglib.Album); v != "" {
		m.Album = v
	}
	if v := get(taglib.Date); v != "" {
		m.Year = v
	}
	m.Genre = get(taglib.Genre)
}
