package cache

import (
	"io/fs"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeInfo is a minimal fs.FileInfo for freshness checks.
type fakeInfo struct {
	size  int64
	mtime time.Time
}

func (f fakeInfo) Name() string       { return "f" }
func (f fakeInfo) Size() int64        { return f.size }
func (f fakeInfo) Mode() fs.FileMode  { return 0o644 }
func (f fakeInfo) ModTime() time.Time { return f.mtime }
func (f fakeInfo) IsDir() bool        { return false }
func (f fakeInfo) Sys() any           { return nil }

func TestValidatorFresh(t *testing.T) {
	v := NewValidator(nil)
	mtime := time.Unix(1700000000, 5)
	info := fakeInfo{size: 10, mtime: mtime}
	entry := &CachedDigest{Version: CacheVersion, Size: 10, Mtime: mtime.UnixNano()}

	tests := []struct {
		name  string
		entry *CachedDigest
		want  bool
	}{
		{name: "matching", entry: entry, want: true},
		{name: "size differs", entry: &CachedDigest{Version: CacheVersion, Size: 11, Mtime: mtime.UnixNano()}, want: false},
		{name: "mtime differs", entry: &CachedDigest{Version: CacheVersion, Size: 10, Mtime: mtime.UnixNano() + 1}, want: false},
		{name: "old version", entry: &CachedDigest{Version: CacheVersion - 1, Size: 10, Mtime: mtime.UnixNano()}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Fresh(tt.entry, info))
		})
	}
}
