package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedDigestEncodeDecode(t *testing.T) {
	original := CachedDigest{
		Version: CacheVersion,
		Size:    42,
		Mtime:   1700000000123456789,
		Digests: map[string]string{"sha256": "abc", "md5": "def"},
	}

	encoded, err := original.Encode()
	require.NoError(t, err)

	var decoded CachedDigest
	require.NoError(t, decoded.Decode(encoded))
	assert.Equal(t, original, decoded)
}

func TestMakeKey(t *testing.T) {
	tests := []struct {
		name    string
		root    string
		relPath string
		want    string
	}{
		{name: "root entry", root: "/srv", relPath: "", want: "/srv\x00"},
		{name: "nested file", root: "/srv", relPath: "a/b.txt", want: "/srv\x00a/b.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := MakeKey(tt.root, tt.relPath)
			assert.Equal(t, tt.want, string(key))

			root, rel := ParseKey(key)
			assert.Equal(t, tt.root, root)
			assert.Equal(t, tt.relPath, rel)
		})
	}
}

func TestParseKeyWithoutSeparator(t *testing.T) {
	root, rel := ParseKey([]byte("/srv"))
	assert.Equal(t, "/srv", root)
	assert.Empty(t, rel)
}

func TestMakeKeyPrefix(t *testing.T) {
	assert.Equal(t, "/srv\x00", string(MakeKeyPrefix("/srv")))
	assert.Nil(t, MakeKeyPrefix(""))
}
