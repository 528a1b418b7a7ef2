// Package cache stores file digests across runs in a Badger database so
// unchanged files are not hashed again. Entries are keyed by tree root and
// relative path and are only served while the file's size and modification
// time are unchanged.
package cache

import (
	"errors"
	"io/fs"
	"maps"

	"github.com/jamesainslie/mtreex/pkg/mtreex/logging"
)

var logger = logging.Get("cache")

// Cache provides high-level digest caching operations.
type Cache struct {
	path      string
	store     *Store
	validator *Validator
}

// Stats summarizes the cache contents.
type Stats struct {
	// Entries is the number of cached files.
	Entries int `json:"entries" yaml:"entries"`

	// Roots is the number of distinct tree roots.
	Roots int `json:"roots" yaml:"roots"`

	// Digests is the total number of stored digests across all files.
	Digests int `json:"digests" yaml:"digests"`

	// Bytes is the combined size of the cached files.
	Bytes int64 `json:"bytes" yaml:"bytes"`

	// DiskBytes is the space the database itself takes.
	DiskBytes int64 `json:"disk_bytes" yaml:"disk_bytes"`
}

// Open opens or creates a cache at the given path. A lock left behind by a
// crashed process is cleared once; a cache held by a live process yields
// ErrBusy.
func Open(path string) (*Cache, error) {
	store, err := OpenStore(path)
	if err != nil {
		if rerr := recoverStaleLock(path); rerr != nil {
			return nil, rerr
		}
		if store, err = OpenStore(path); err != nil {
			return nil, err
		}
	}

	if err := writeOwner(path); err != nil {
		logger.Warn("failed to record cache owner", "dir", path, "error", err)
	}

	return &Cache{
		path:      path,
		store:     store,
		validator: NewValidator(store),
	}, nil
}

// Close closes the cache.
func (c *Cache) Close() error {
	removeOwner(c.path)
	return c.store.Close()
}

// Lookup returns the cached digests for root/relPath when the entry is
// still fresh for info and holds every requested algorithm.
func (c *Cache) Lookup(root, relPath string, info fs.FileInfo, algos []string) (map[string]string, bool) {
	entry, err := c.store.Get(root, relPath)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.Warn("cache read failed", "path", relPath, "error", err)
		}
		return nil, false
	}
	if !c.validator.Fresh(entry, info) {
		return nil, false
	}

	out := make(map[string]string, len(algos))
	for _, algo := range algos {
		d, ok := entry.Digests[algo]
		if !ok {
			return nil, false
		}
		out[algo] = d
	}
	return out, true
}

// Store records digests for root/relPath. Digests already cached for the
// same file state are kept alongside the new ones.
func (c *Cache) Store(root, relPath string, info fs.FileInfo, digests map[string]string) error {
	entry := newCachedDigest(info, digests)

	if prev, err := c.store.Get(root, relPath); err == nil && c.validator.Fresh(prev, info) {
		merged := make(map[string]string, len(prev.Digests)+len(entry.Digests))
		maps.Copy(merged, prev.Digests)
		maps.Copy(merged, entry.Digests)
		entry.Digests = merged
	}

	return c.store.Put(root, relPath, entry)
}

// Prune removes entries under root whose files are gone or changed.
func (c *Cache) Prune(root string) (*PruneResult, error) {
	return c.validator.Prune(root)
}

// Compact reclaims disk space freed by Prune and Clear.
func (c *Cache) Compact() error {
	return c.store.Compact()
}

// Clear removes all cached entries for a root.
func (c *Cache) Clear(root string) (int, error) {
	return c.store.DeletePrefix(root)
}

// ClearAll removes all cached entries.
func (c *Cache) ClearAll() (int, error) {
	return c.store.DeletePrefix("")
}

// Stats counts the cached entries.
func (c *Cache) Stats() (Stats, error) {
	var s Stats
	roots := map[string]struct{}{}

	err := c.store.ForEach("", func(root, _ string, entry *CachedDigest) error {
		s.Entries++
		s.Digests += len(entry.Digests)
		s.Bytes += entry.Size
		roots[root] = struct{}{}
		return nil
	})
	s.Roots = len(roots)
	s.DiskBytes = c.store.DiskSize()
	return s, err
}
