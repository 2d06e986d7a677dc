// Package organize places imported music files into the library tree,
// named from their metadata.
package organize

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mgoujon/aria/internal/tags"
)

// Folder structures the organizer knows how to build.
const (
	StructureArtistAlbum     = "artist/album"
	StructureArtistYearAlbum = "artist/year/album"
	StructureAlbum           = "album"
)

// Organizer places music files into a structured library tree.
type Organizer struct {
	root      string // library music folder
	structure string
	copyFiles bool // false moves files instead
	log       *slog.Logger
}

// New creates an organizer rooted at the library music folder. An
// unrecognized structure falls back to artist/album. When copyFiles is
// false, Place moves the source file instead of copying it.
func New(root, structure string, copyFiles bool, log *slog.Logger) *Organizer {
	switch structure {
	case StructureArtistAlbum, StructureArtistYearAlbum, StructureAlbum:
	default:
		structure = StructureArtistAlbum
	}
	return &Organizer{root: root, structure: structure, copyFiles: copyFiles, log: log}
}

// Plan computes the target path for a file without touching the
// filesystem, except for duplicate probing in the target directory. The
// original extension is always retained; the transcoded temp file never
// names the library copy.
func (o *Organizer) Plan(meta *tags.Metadata, originalPath string) string {
	artist := Sanitize(meta.Artist)
	album := Sanitize(meta.Album)
	title := Sanitize(strings.TrimSuffix(meta.Title, filepath.Ext(meta.Title)))
	if title == "Unknown" {
		title = Sanitize(strings.TrimSuffix(filepath.Base(originalPath), filepath.Ext(originalPath)))
	}

	var dir string
	switch o.structure {
	case StructureArtistYearAlbum:
		year := strings.TrimSpace(meta.Year)
		if year == "" {
			year = "Unknown Year"
		}
		dir = filepath.Join(o.root, artist, Sanitize(year), album)
	case StructureAlbum:
		dir = filepath.Join(o.root, album)
	default:
		dir = filepath.Join(o.root, artist, album)
	}

	ext := filepath.Ext(originalPath)
	target := filepath.Join(dir, title+ext)

	// Duplicates get a " (n)" suffix, probing until a free name appears.
	for counter := 1; ; counter++ {
		if _, err := os.Stat(target); os.IsNotExist(err) {
			return target
		}
		target = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", title, counter, ext))
	}
}

// Place puts originalPath into the library tree and returns the final
// path. In copy mode the source file is left in place; in move mode it
// is removed once the library copy exists.
func (o *Organizer) Place(meta *tags.Metadata, originalPath string) (string, error) {
	target := o.Plan(meta, originalPath)
	if target == originalPath {
		return target, nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", err
	}
	if !o.copyFiles {
		// Rename first; cross-device moves fall back to copy+remove.
		if err := os.Rename(originalPath, target); err == nil {
			o.log.Info("moved to library",
				"from", filepath.Base(originalPath), "to", target)
			return target, nil
		}
	}
	if err := copyFile(originalPath, target); err != nil {
		return "", err
	}
	if o.copyFiles {
		o.log.Info("copied to library",
			"from", filepath.Base(originalPath), "to", target)
		return target, nil
	}
	if err := os.Remove(originalPath); err != nil {
		o.log.Warn("could not remove source after move",
			"path", originalPath, "error", err)
	}
	o.log.Info("moved to library",
		"from", filepath.Base(originalPath), "to", target)
	return target, nil
}

// Sanitize strips filesystem-hostile characters from a path component.
// Empty results become "Unknown".
func Sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
		default:
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), ". ")
	if out == "" {
		return "Unknown"
	}
	return out
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
