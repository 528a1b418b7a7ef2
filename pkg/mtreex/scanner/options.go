// Package scanner generates mtree manifests by walking a directory tree in
// parallel. Directory reads run on fastwalk workers and file hashing runs
// on a bounded pool sized by the tuner package.
package scanner

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/jamesainslie/mtreex/pkg/mtreex/cache"
	"github.com/jamesainslie/mtreex/pkg/mtreex/digest"
	"github.com/jamesainslie/mtreex/pkg/mtreex/mtree"
)

// ErrUnsupportedKeyword is returned when asked to record a keyword that
// cannot be read from the filesystem.
var ErrUnsupportedKeyword = errors.New("keyword cannot be generated")

// DefaultKeywords are recorded when Options.Keywords is empty.
var DefaultKeywords = []string{
	mtree.KeywordType,
	mtree.KeywordMode,
	mtree.KeywordUid,
	mtree.KeywordGid,
	mtree.KeywordSize,
	mtree.KeywordTime,
	mtree.KeywordLink,
	mtree.KeywordSHA256,
}

// statKeywords are the non-digest keywords the scanner can fill in.
var statKeywords = []string{
	mtree.KeywordType,
	mtree.KeywordMode,
	mtree.KeywordUid,
	mtree.KeywordGid,
	mtree.KeywordUname,
	mtree.KeywordGname,
	mtree.KeywordNlink,
	mtree.KeywordSize,
	mtree.KeywordTime,
	mtree.KeywordLink,
	mtree.KeywordDevice,
}

// Options configures the scanner behavior.
type Options struct {
	// Root is the directory to describe.
	Root string

	// Keywords lists the keywords to record. Synonyms such as sha256digest
	// are accepted. Empty means DefaultKeywords.
	Keywords []string

	// Exclude contains glob patterns for paths to skip. Patterns match the
	// entry name or the path relative to Root; an excluded directory is
	// skipped with everything below it.
	Exclude []string

	// Workers overrides the number of files hashed concurrently.
	// Zero or negative sizes the pool from detected resources.
	Workers int

	// OnProgress is called periodically with scan progress updates.
	// It must be safe to call from multiple goroutines.
	OnProgress func(Progress)

	// Cache is an optional digest cache for speeding up repeat scans.
	// If nil, caching is disabled.
	Cache *cache.Cache

	// Now supplies the header date. Nil means time.Now.
	Now func() time.Time
}

// Progress is a snapshot of a running scan.
type Progress struct {
	DirsScanned  int64
	FilesScanned int64
	FilesHashed  int64
	BytesHashed  int64
	CacheHits    int64
	CurrentPath  string
	WalkComplete bool
}

// ScanError records a path the scanner could not read.
type ScanError struct {
	Path  string `json:"path" yaml:"path"`
	Error string `json:"error" yaml:"error"`
}

// Validate normalizes the keyword list and applies defaults.
func (o *Options) Validate() error {
	if o.Root == "" {
		o.Root = "."
	}
	if len(o.Keywords) == 0 {
		o.Keywords = DefaultKeywords
	}

	normalized := lo.Uniq(lo.Map(o.Keywords, func(k string, _ int) string {
		return mtree.NormalizeKeyword(k)
	}))
	bad, found := lo.Find(normalized, func(k string) bool {
		return !slices.Contains(statKeywords, k) && !digest.Supported(k)
	})
	if found {
		return fmt.Errorf("%w: %s", ErrUnsupportedKeyword, bad)
	}
	o.Keywords = normalized
	return nil
}
