package replay

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// CatalogEntry describes one bundle found on disk. Header is nil while the
// session is still recording or was never closed cleanly.
type CatalogEntry struct {
	Dir      string   `json:"dir"`
	Manifest Manifest `json:"manifest"`
	Header   *Header  `json:"header,omitempty"`
}

// Closed reports whether the bundle was finalised with a header.
func (e CatalogEntry) Closed() bool { return e.Header != nil }

func (e CatalogEntry) created() time.Time {
	created, err := time.Parse(time.RFC3339Nano, e.Manifest.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return created
}

// Catalog walks root for recorded bundles, oldest session first. A manifest
// with an unknown layout version fails the whole listing.
func Catalog(root string) ([]CatalogEntry, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("root directory must be provided")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root must be a directory")
	}

	var entries []CatalogEntry
	//1.- Every bundle is anchored by its manifest; the header only exists once closed.
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || d.Name() != manifestFile {
			return nil
		}
		manifest, err := readManifest(path)
		if err != nil {
			return err
		}
		dir := filepath.Dir(path)
		entry := CatalogEntry{Dir: dir, Manifest: manifest}
		header, err := ReadHeader(filepath.Join(dir, headerFile))
		switch {
		case err == nil:
			if header.SessionID != manifest.SessionID {
				return fmt.Errorf("%s: header session %q does not match manifest %q", dir, header.SessionID, manifest.SessionID)
			}
			entry.Header = &header
		case errors.Is(err, fs.ErrNotExist):
		default:
			return fmt.Errorf("%s: %w", dir, err)
		}
		entries = append(entries, entry)
		return fs.SkipDir
	})
	if err != nil {
		return nil, err
	}

	//2.- Order by creation time; unparsable stamps sort first.
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].created(), entries[j].created()
		if a.Equal(b) {
			return entries[i].Dir < entries[j].Dir
		}
		return a.Before(b)
	})
	return entries, nil
}
