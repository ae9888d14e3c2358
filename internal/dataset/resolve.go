package dataset

import (
	"fmt"
	"path/filepath"
	"strings"

	"tabserve/internal/domain"
)

// Resolver turns logical dataset references into loaded tables.
type Resolver struct {
	registry *Registry
	catalog  *Catalog
}

// NewResolver creates a Resolver over the given registry and catalog.
func NewResolver(registry *Registry, catalog *Catalog) *Resolver {
	return &Resolver{registry: registry, catalog: catalog}
}

// Path resolves a datasource ID plus a reference (a path relative to the
// source root, or empty for the root itself) to an absolute path confined
// to the root.
func (r *Resolver) Path(datasource, ref string) (string, error) {
	src, err := r.registry.Resolve(datasource)
	if err != nil {
		return "", err
	}
	if ref == "" {
		return src.Root, nil
	}
	if filepath.IsAbs(ref) {
		ref = strings.TrimPrefix(ref, src.Root)
	}
	full := filepath.Join(src.Root, ref)
	rel, err := filepath.Rel(src.Root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", domain.ErrValidation("reference %q escapes datasource root", ref)
	}
	return full, nil
}

// Table resolves a dataset reference to a single table: every discovered
// file whose schema matches the first file is loaded and unioned, in
// discovery order, before any plan step runs. Files with a different
// schema are skipped; each skip is reported in notes. rowCap bounds the
// total row count across the union.
func (r *Resolver) Table(datasource, ref string, rowCap int) (*domain.Table, []string, error) {
	root, err := r.Path(datasource, ref)
	if err != nil {
		return nil, nil, err
	}

	files, err := r.catalog.Discover(root, true, 0)
	if err != nil {
		return nil, nil, err
	}
	if len(files) == 0 {
		return nil, nil, domain.ErrNotFound("no supported files found for dataset %q", ref)
	}

	base, err := Load(files[0].Path, rowCap)
	if err != nil {
		return nil, nil, err
	}

	var notes []string
	for _, fd := range files[1:] {
		if rowCap > 0 && base.NumRows() >= rowCap {
			break
		}
		remaining := 0
		if rowCap > 0 {
			remaining = rowCap - base.NumRows()
		}
		next, err := Load(fd.Path, remaining)
		if err != nil {
			return nil, nil, err
		}
		if !base.SameShape(next) {
			notes = append(notes, fmt.Sprintf("skipped %s: schema does not match %s", fd.Name, files[0].Name))
			continue
		}
		base.AppendTable(next)
	}

	return base, notes, nil
}

// FirstFile returns the first discovered file under the datasource root.
// Used by preview when no explicit path is given.
func (r *Resolver) FirstFile(datasource string) (domain.FileDescriptor, error) {
	src, err := r.registry.Resolve(datasource)
	if err != nil {
		return domain.FileDescriptor{}, err
	}
	files, err := r.catalog.Discover(src.Root, true, 1)
	if err != nil {
		return domain.FileDescriptor{}, err
	}
	if len(files) == 0 {
		return domain.FileDescriptor{}, domain.ErrNotFound("no supported files found in datasource %q", src.ID)
	}
	return files[0], nil
}
