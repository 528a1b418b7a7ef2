package cache

import (
	"bytes"
	"encoding/gob"
	"io/fs"
	"maps"
)

// CacheVersion is incremented when the cache format changes.
const CacheVersion = 2

// KeySeparator separates root from relative path in cache keys.
const KeySeparator = '\x00'

// CachedDigest holds the digests computed for one regular file together
// with the size and modification time they were computed at.
type CachedDigest struct {
	Version int
	Size    int64             // File size in bytes
	Mtime   int64             // Modification time as UnixNano
	Digests map[string]string // Keyword name to digest text
}

// newCachedDigest returns an entry stamped with info's size and mtime.
func newCachedDigest(info fs.FileInfo, digests map[string]string) *CachedDigest {
	return &CachedDigest{
		Version: CacheVersion,
		Size:    info.Size(),
		Mtime:   info.ModTime().UnixNano(),
		Digests: maps.Clone(digests),
	}
}

// Encode serializes the entry to bytes using gob.
func (e *CachedDigest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes bytes into the entry using gob.
func (e *CachedDigest) Decode(data []byte) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(e)
}

// MakeKey creates a cache key from root and relative path.
// Format: <root>\x00<relative_path>
func MakeKey(root, relPath string) []byte {
	key := make([]byte, 0, len(root)+1+len(relPath))
	key = append(key, root...)
	key = append(key, KeySeparator)
	return append(key, relPath...)
}

// ParseKey extracts root and relative path from a cache key.
func ParseKey(key []byte) (root, relPath string) {
	before, after, found := bytes.Cut(key, []byte{KeySeparator})
	if !found {
		return string(key), ""
	}
	return string(before), string(after)
}

// MakeKeyPrefix returns the prefix for all keys under a root.
// The empty root selects every key.
func MakeKeyPrefix(root string) []byte {
	if root == "" {
		return nil
	}
	return append([]byte(root), KeySeparator)
}
