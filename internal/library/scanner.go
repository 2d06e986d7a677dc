package library

import (
	"bytes"
	"image"
	"image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/nfnt/resize"

	"github.com/mgoujon/aria/internal/organize"
	"github.com/mgoujon/aria/internal/tags"
)

const numWorkers = 8

// Album art stored in the catalog is capped to a thumbnail.
const maxArtDimension = 500

// ImportProgress reports the progress of a library import.
type ImportProgress struct {
	Phase       string // "scanning", "processing", "done"
	Current     int
	Total       int
	CurrentFile string
}

type importResult struct {
	path string
	meta *tags.Metadata
}

// Import ingests the given files and directories: metadata is extracted,
// embedded art is shrunk to a thumbnail, files are placed into the library
// tree when an organizer is given, and songs are upserted into the
// catalog. Already-cataloged paths are skipped. Returns the number of
// songs imported. The progress channel is closed when the import ends;
// pass nil to skip reporting.
func (l *Library) Import(paths []string, org *organize.Organizer, progress chan<- ImportProgress) (int, error) {
	if progress != nil {
		defer close(progress)
	}
	report := func(p ImportProgress) {
		if progress != nil {
			progress <- p
		}
	}

	report(ImportProgress{Phase: "scanning"})
	files, err := discoverFiles(paths)
	if err != nil {
		return 0, err
	}

	existing, err := l.existingPaths()
	if err != nil {
		return 0, err
	}
	toProcess := files[:0]
	for _, f := range files {
		if _, ok := existing[f]; !ok {
			toProcess = append(toProcess, f)
		}
	}

	total := len(toProcess)
	var processed atomic.Int64

	workCh := make(chan string, total)
	resultCh := make(chan importResult, total)

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Go(func() {
			for path := range workCh {
				meta, err := tags.Read(path)
				if err != nil {
					processed.Add(1)
					continue
				}
				meta.AlbumArt = thumbnailArt(meta.AlbumArt)
				resultCh <- importResult{path: path, meta: meta}
			}
		})
	}
	for _, f := range toProcess {
		workCh <- f
	}
	close(workCh)
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// File placement and catalog writes stay on this goroutine: the
	// organizer's duplicate probing is not safe to run concurrently.
	imported := 0
	for res := range resultCh {
		n := int(processed.Add(1))
		report(ImportProgress{
			Phase: "processing", Current: n, Total: total, CurrentFile: res.path,
		})

		finalPath := res.path
		if org != nil {
			placed, err := org.Place(res.meta, res.path)
			if err == nil {
				finalPath = placed
			}
		}

		song := &Song{
			Title:           res.meta.Title,
			Artist:          res.meta.Artist,
			Album:           res.meta.Album,
			Year:            res.meta.Year,
			Genre:           res.meta.Genre,
			DurationSeconds: res.meta.DurationSeconds,
			Path:            finalPath,
			AlbumArt:        res.meta.AlbumArt,
			Source:          "local",
		}
		if _, err := l.AddSong(song); err != nil {
			continue
		}
		imported++
	}

	report(ImportProgress{Phase: "done", Current: total, Total: total})
	return imported, nil
}

// discoverFiles expands the given paths into supported music files,
// walking directories recursively.
func discoverFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if tags.Supported(filepath.Ext(p)) {
				files = append(files, p)
			}
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && tags.Supported(strings.ToLower(filepath.Ext(path))) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func (l *Library) existingPaths() (map[string]struct{}, error) {
	rows, err := l.db.Query(`SELECT path FROM songs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	paths := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths[p] = struct{}{}
	}
	return paths, rows.Err()
}

// thumbnailArt shrinks embedded album art to at most 500x500, re-encoded
// as JPEG. Art that cannot be decoded, or already fits, passes unchanged.
func thumbnailArt(art []byte) []byte {
	if len(art) == 0 {
		return nil
	}
	img, _, err := image.Decode(bytes.NewReader(art))
	if err != nil {
		return art
	}
	bounds := img.Bounds()
	if bounds.Dx() <= maxArtDimension && bounds.Dy() <= maxArtDimension {
		return art
	}

	small := resize.Thumbnail(maxArtDimension, maxArtDimension, img, resize.Lanczos3)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, small, &jpeg.Options{Quality: 85}); err != nil {
		return art
	}
	return buf.Bytes()
}
