package cache

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// PruneResult reports what a prune pass removed.
type PruneResult struct {
	// Checked is the number of entries examined.
	Checked int

	// Removed are the relative paths whose entries were dropped because the
	// file is gone or has changed since its digests were computed.
	Removed []string
}

// Validator decides whether cached digests still describe a file.
type Validator struct {
	store *Store
}

// NewValidator creates a new cache validator.
func NewValidator(store *Store) *Validator {
	return &Validator{store: store}
}

// Fresh reports whether entry was computed for a file with info's size and
// modification time. Entries written by another cache version never match.
func (v *Validator) Fresh(entry *CachedDigest, info fs.FileInfo) bool {
	return entry.Version == CacheVersion &&
		entry.Size == info.Size() &&
		entry.Mtime == info.ModTime().UnixNano()
}

// Prune checks every entry under root against the filesystem and deletes
// the stale ones.
func (v *Validator) Prune(root string) (*PruneResult, error) {
	result := &PruneResult{}
	var stale [][]byte

	err := v.store.ForEach(root, func(r, rel string, entry *CachedDigest) error {
		result.Checked++
		info, err := os.Lstat(filepath.Join(r, filepath.FromSlash(rel)))
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return err
		case info.Mode().IsRegular() && v.Fresh(entry, info):
			return nil
		}
		result.Removed = append(result.Removed, rel)
		stale = append(stale, MakeKey(r, rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := v.store.Delete(stale...); err != nil {
		return nil, err
	}
	return result, nil
}
