package dataset

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"tabserve/internal/domain"
)

// DefaultExtensions is the built-in file extension allow-list.
var DefaultExtensions = []string{".csv", ".parquet", ".jsonl"}

// Catalog enumerates eligible files under datasource roots. It is read-only
// and keeps no state beyond its extension allow-list.
type Catalog struct {
	allowed map[string]bool
}

// NewCatalog creates a Catalog restricted to the given extensions
// (lower-cased, leading dot required). An empty list uses DefaultExtensions.
func NewCatalog(extensions []string) *Catalog {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		allowed[strings.ToLower(strings.TrimSpace(ext))] = true
	}
	return &Catalog{allowed: allowed}
}

// Supported reports whether the path's extension is in the allow-list.
func (c *Catalog) Supported(path string) bool {
	return c.allowed[strings.ToLower(filepath.Ext(path))]
}

// Discover resolves root to the list of eligible files. A root naming a
// single allow-listed file yields a one-element result; a directory is
// enumerated in traversal order, recursively when recurse is set, stopping
// once maxFiles matches have been collected (maxFiles <= 0 means unbounded).
// Ordering beyond "first N discovered" is not guaranteed.
func (c *Catalog) Discover(root string, recurse bool, maxFiles int) ([]domain.FileDescriptor, error) {
	info, err := os.Stat(root)
	if os.IsNotExist(err) {
		return nil, domain.ErrNotFound("path not found: %s", root)
	}
	if err != nil {
		return nil, domain.ErrComputation("stat %s: %v", root, err)
	}

	if !info.IsDir() {
		if !c.Supported(root) {
			return []domain.FileDescriptor{}, nil
		}
		return []domain.FileDescriptor{describe(root, info)}, nil
	}

	files := []domain.FileDescriptor{}
	full := func() bool { return maxFiles > 0 && len(files) >= maxFiles }

	if recurse {
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() || !c.Supported(path) {
				return nil
			}
			fi, statErr := d.Info()
			if statErr != nil {
				return statErr
			}
			files = append(files, describe(path, fi))
			if full() {
				return fs.SkipAll
			}
			return nil
		})
	} else {
		var entries []fs.DirEntry
		entries, err = os.ReadDir(root)
		if err == nil {
			for _, entry := range entries {
				if full() {
					break
				}
				if entry.IsDir() {
					continue
				}
				path := filepath.Join(root, entry.Name())
				if !c.Supported(path) {
					continue
				}
				fi, statErr := entry.Info()
				if statErr != nil {
					return nil, domain.ErrComputation("stat %s: %v", path, statErr)
				}
				files = append(files, describe(path, fi))
			}
		}
	}
	if err != nil {
		return nil, domain.ErrComputation("enumerate %s: %v", root, err)
	}

	return files, nil
}

func describe(path string, info fs.FileInfo) domain.FileDescriptor {
	return domain.FileDescriptor{
		Path:       path,
		Name:       info.Name(),
		Size:       info.Size(),
		ModifiedAt: info.ModTime(),
		Extension:  strings.ToLower(filepath.Ext(path)),
	}
}
