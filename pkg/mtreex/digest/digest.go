// Package digest computes the checksum keywords of an mtree manifest
// (cksum, md5, rmd160, sha1, sha256, sha384, sha512) for regular files,
// hashing each file once for every requested algorithm.
package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync/atomic"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // rmd160 is part of the manifest format.

	"github.com/jamesainslie/mtreex/pkg/mtreex/logging"
	"github.com/jamesainslie/mtreex/pkg/mtreex/mtree"
)

var logger = logging.Get("digest")

// ErrUnsupported is returned for a keyword that is not a checksum.
var ErrUnsupported = errors.New("unsupported digest")

// Algorithms lists the checksum keywords this package computes.
var Algorithms = []string{
	mtree.KeywordCksum,
	mtree.KeywordMD5,
	mtree.KeywordRMD160,
	mtree.KeywordSHA1,
	mtree.KeywordSHA256,
	mtree.KeywordSHA384,
	mtree.KeywordSHA512,
}

// Supported reports whether name (after synonym normalization) is a
// checksum keyword.
func Supported(name string) bool {
	return slices.Contains(Algorithms, mtree.NormalizeKeyword(name))
}

// Select returns the checksum keywords among names, normalized, in
// Algorithms order.
func Select(names []string) []string {
	var out []string
	for _, algo := range Algorithms {
		for _, n := range names {
			if mtree.NormalizeKeyword(n) == algo {
				out = append(out, algo)
				break
			}
		}
	}
	return out
}

// newHash returns a fresh hash for algo.
func newHash(algo string) (hash.Hash, error) {
	switch algo {
	case mtree.KeywordCksum:
		return NewCksum(), nil
	case mtree.KeywordMD5:
		return md5.New(), nil
	case mtree.KeywordRMD160:
		return ripemd160.New(), nil
	case mtree.KeywordSHA1:
		return sha1.New(), nil
	case mtree.KeywordSHA256:
		return sha256.New(), nil
	case mtree.KeywordSHA384:
		return sha512.New384(), nil
	case mtree.KeywordSHA512:
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, algo)
	}
}

// Reader hashes everything read from r with every algorithm in algos.
// Digests are lowercase hex; cksum is the decimal CRC.
func Reader(r io.Reader, algos []string) (map[string]string, error) {
	hashes := make(map[string]hash.Hash, len(algos))
	writers := make([]io.Writer, 0, len(algos))
	for _, algo := range algos {
		algo = mtree.NormalizeKeyword(algo)
		if _, dup := hashes[algo]; dup {
			continue
		}
		h, err := newHash(algo)
		if err != nil {
			return nil, err
		}
		hashes[algo] = h
		writers = append(writers, h)
	}

	if _, err := io.Copy(io.MultiWriter(writers...), r); err != nil {
		return nil, err
	}

	out := make(map[string]string, len(hashes))
	for algo, h := range hashes {
		if c, ok := h.(*Cksum); ok {
			out[algo] = strconv.FormatUint(uint64(c.Sum32()), 10)
			continue
		}
		out[algo] = hex.EncodeToString(h.Sum(nil))
	}
	return out, nil
}

// File hashes the file at path.
func File(path string, algos []string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Reader(f, algos)
}

// Cache is the persistent digest store consulted by a Hasher.
type Cache interface {
	Lookup(root, relPath string, info fs.FileInfo, algos []string) (map[string]string, bool)
	Store(root, relPath string, info fs.FileInfo, digests map[string]string) error
}

// Hasher computes file digests, serving them from a cache when the file is
// unchanged. It is safe for concurrent use.
type Hasher struct {
	cache Cache

	hits   atomic.Int64
	misses atomic.Int64
	bytes  atomic.Int64
}

// NewHasher returns a Hasher backed by c. A nil c disables caching.
func NewHasher(c Cache) *Hasher {
	return &Hasher{cache: c}
}

// Sum returns the digests of root/relPath, whose current state is info.
func (h *Hasher) Sum(root, relPath string, info fs.FileInfo, algos []string) (map[string]string, error) {
	if h.cache != nil {
		if d, ok := h.cache.Lookup(root, relPath, info, algos); ok {
			h.hits.Add(1)
			return d, nil
		}
	}
	h.misses.Add(1)

	d, err := File(filepath.Join(root, filepath.FromSlash(relPath)), algos)
	if err != nil {
		return nil, err
	}
	h.bytes.Add(info.Size())

	if h.cache != nil {
		if err := h.cache.Store(root, relPath, info, d); err != nil {
			logger.Warn("cache write failed", "path", relPath, "error", err)
		}
	}
	return d, nil
}

// Stats returns the cache hits, the files hashed, and the bytes read.
func (h *Hasher) Stats() (hits, misses, bytes int64) {
	return h.hits.Load(), h.misses.Load(), h.bytes.Load()
}
