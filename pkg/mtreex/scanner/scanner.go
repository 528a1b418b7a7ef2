package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/gobwas/glob"
	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/mtreex/pkg/mtreex/digest"
	"github.com/jamesainslie/mtreex/pkg/mtreex/logging"
	"github.com/jamesainslie/mtreex/pkg/mtreex/mtree"
	"github.com/jamesainslie/mtreex/pkg/mtreex/tuner"
)

var logger = logging.Get("scanner")

// ErrNotDirectory is returned when the scan root is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// Scanner generates a manifest for a directory tree using fastwalk.
type Scanner struct {
	opts    Options
	digests []string
	hasher  *digest.Hasher

	// Atomic counters for thread-safe progress reporting.
	dirsScanned  atomic.Int64
	filesScanned atomic.Int64

	// currentPath is the path currently being scanned (for progress).
	currentPath atomic.Value

	// errors collects scan errors without stopping the scan.
	errors   []ScanError
	errorsMu sync.Mutex

	// records collects one record per walked path.
	records   []*record
	recordsMu sync.Mutex

	// lastProgress tracks when we last reported progress to avoid excessive callbacks.
	lastProgress atomic.Int64

	// root is the resolved absolute path being scanned.
	root string

	// excludes are the compiled Options.Exclude patterns.
	excludes []excludeRule

	// walkComplete indicates directory traversal is finished (hashing may be ongoing).
	walkComplete atomic.Bool
}

// record is one walked path awaiting its place in the manifest.
type record struct {
	path  string // manifest path, "/" for the root
	rel   string // slash-separated path relative to the root, "" for the root
	info  fs.FileInfo
	attrs mtree.Attributes
}

// New creates a new Scanner with the given options.
// Invalid keywords surface as an error from Scan.
func New(opts Options) *Scanner {
	s := &Scanner{opts: opts}
	s.currentPath.Store("")
	return s
}

// Scan walks the tree and returns its manifest. Entries are in tree order:
// each directory is followed by everything below it. Unreadable paths are
// recorded as document warnings and in Errors; Scan only fails when the
// root itself is unusable or ctx is cancelled.
func (s *Scanner) Scan(ctx context.Context) (*mtree.Document, error) {
	startTime := time.Now()

	if err := s.opts.Validate(); err != nil {
		return nil, err
	}
	s.digests = digest.Select(s.opts.Keywords)
	s.excludes = compileExcludes(s.opts.Exclude)

	root, err := s.validateRoot()
	if err != nil {
		return nil, err
	}
	s.root = root

	var c digest.Cache
	if s.opts.Cache != nil {
		c = s.opts.Cache
	}
	s.hasher = digest.NewHasher(c)

	workers := tuner.Auto(s.opts.Workers)
	logger.Debug("scan starting", "root", root, "keywords", s.opts.Keywords,
		"walk_workers", workers.Walk, "digest_workers", workers.Digest)

	s.currentPath.Store(root)
	s.reportProgressForce()

	if err := s.executeWalk(ctx, workers.Walk); err != nil {
		return nil, err
	}

	s.walkComplete.Store(true)
	s.reportProgressForce()

	slices.SortFunc(s.records, func(a, b *record) int {
		return comparePaths(a.path, b.path)
	})

	if err := s.hashFiles(ctx, workers.Digest); err != nil {
		return nil, err
	}
	s.reportProgressForce()

	doc := mtree.NewDocument(s.header())
	for _, r := range s.records {
		doc.Add(mtree.Entry{Path: r.path, Attrs: r.attrs})
	}
	for _, e := range s.Errors() {
		doc.AddWarning(fmt.Sprintf("%s: %s", e.Path, e.Error))
	}

	hits, hashed, _ := s.hasher.Stats()
	logger.Info("scan complete", "root", root, "entries", doc.Len(), "hashed", hashed,
		"cache_hits", hits, "errors", len(s.errors), "elapsed", time.Since(startTime))
	return doc, nil
}

// Errors returns the paths that could not be read during the last scan.
func (s *Scanner) Errors() []ScanError {
	s.errorsMu.Lock()
	defer s.errorsMu.Unlock()
	return slices.Clone(s.errors)
}

// executeWalk runs fastwalk over the root.
func (s *Scanner) executeWalk(ctx context.Context, workers int) error {
	conf := fastwalk.Config{
		Follow:     false, // Don't follow symlinks.
		NumWorkers: workers,
	}

	err := fastwalk.Walk(&conf, s.root, s.walkCallback(ctx))
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil && !errors.Is(err, fastwalk.ErrSkipFiles) {
		return err
	}
	return nil
}

// validateRoot resolves the root path to absolute and verifies it is a directory.
func (s *Scanner) validateRoot() (string, error) {
	root, err := filepath.Abs(s.opts.Root)
	if err != nil {
		return "", err
	}

	rootInfo, err := os.Stat(root)
	if err != nil {
		return "", err
	}
	if !rootInfo.IsDir() {
		return "", fmt.Errorf("%s: %w", root, ErrNotDirectory)
	}

	return root, nil
}

// walkCallback returns the callback function for fastwalk.Walk.
func (s *Scanner) walkCallback(ctx context.Context) fs.WalkDirFunc {
	return func(full string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		// Handle errors gracefully - log and continue.
		if err != nil {
			s.addError(full, err)
			return nil
		}

		rel := s.relPath(full)
		if rel != "" && s.isExcluded(rel) {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			s.addError(full, err)
			return nil
		}

		if info.IsDir() {
			s.dirsScanned.Add(1)
			s.currentPath.Store(full)
			s.reportProgress()
		} else {
			s.filesScanned.Add(1)
		}

		r := &record{path: "/" + rel, rel: rel, info: info}
		r.attrs = s.attributes(full, info)

		s.recordsMu.Lock()
		s.records = append(s.records, r)
		s.recordsMu.Unlock()
		return nil
	}
}

// relPath returns full relative to the root with forward slashes.
func (s *Scanner) relPath(full string) string {
	if full == s.root {
		return ""
	}
	return filepath.ToSlash(strings.TrimPrefix(full, s.root+string(filepath.Separator)))
}

// attributes reads the requested non-digest keywords from info, recording
// unreadable link targets as scan errors.
func (s *Scanner) attributes(full string, info fs.FileInfo) mtree.Attributes {
	attrs, err := Describe(full, info, s.opts.Keywords)
	if err != nil {
		s.addError(full, err)
	}
	return attrs
}

// hashFiles computes the requested digests for every regular file on a
// pool of workers.
func (s *Scanner) hashFiles(ctx context.Context, workers int) error {
	if len(s.digests) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, r := range s.records {
		if !r.info.Mode().IsRegular() {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s.currentPath.Store(r.path)

			sums, err := s.hasher.Sum(s.root, r.rel, r.info, s.digests)
			if err != nil {
				s.addError(filepath.Join(s.root, filepath.FromSlash(r.rel)), err)
				return nil
			}
			for algo, sum := range sums {
				if algo == mtree.KeywordCksum {
					n, err := strconv.ParseInt(sum, 10, 64)
					if err != nil {
						return err
					}
					r.attrs[algo] = n
					continue
				}
				r.attrs[algo] = sum
			}
			s.reportProgress()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// header describes who generated the manifest, where, and when.
func (s *Scanner) header() mtree.Header {
	now := time.Now
	if s.opts.Now != nil {
		now = s.opts.Now
	}

	h := mtree.Header{
		Tree: s.root,
		Date: now().UTC().Truncate(time.Second),
	}
	if u, err := user.Current(); err == nil {
		h.User = u.Username
	} else {
		h.User = os.Getenv("USER")
	}
	if host, err := os.Hostname(); err == nil {
		h.Machine = host
	}
	return h
}

// addError adds an error to the error list thread-safely.
func (s *Scanner) addError(p string, err error) {
	logger.Debug("scan error", "path", p, "error", err)
	s.errorsMu.Lock()
	s.errors = append(s.errors, ScanError{
		Path:  p,
		Error: err.Error(),
	})
	s.errorsMu.Unlock()
}

// reportProgress calls the progress callback if configured.
// Throttles calls to avoid excessive overhead.
func (s *Scanner) reportProgress() {
	if s.opts.OnProgress == nil {
		return
	}

	// Throttle progress updates to every 10ms.
	now := time.Now().UnixMilli()
	last := s.lastProgress.Load()
	if now-last < 10 {
		return
	}
	if !s.lastProgress.CompareAndSwap(last, now) {
		return // Another goroutine updated it.
	}

	s.sendProgress()
}

// reportProgressForce calls the progress callback immediately, bypassing throttle.
func (s *Scanner) reportProgressForce() {
	if s.opts.OnProgress == nil {
		return
	}
	s.lastProgress.Store(time.Now().UnixMilli())
	s.sendProgress()
}

// sendProgress sends the current progress to the callback.
func (s *Scanner) sendProgress() {
	currentPath, _ := s.currentPath.Load().(string)

	var hits, hashed, bytes int64
	if s.hasher != nil {
		hits, hashed, bytes = s.hasher.Stats()
	}

	s.opts.OnProgress(Progress{
		DirsScanned:  s.dirsScanned.Load(),
		FilesScanned: s.filesScanned.Load(),
		FilesHashed:  hashed,
		BytesHashed:  bytes,
		CacheHits:    hits,
		CurrentPath:  currentPath,
		WalkComplete: s.walkComplete.Load(),
	})
}

// isExcluded checks if a relative path matches any exclusion rule.
func (s *Scanner) isExcluded(rel string) bool {
	for _, r := range s.excludes {
		if r.match(rel) {
			return true
		}
	}
	return false
}

// excludeRule is one compiled exclusion pattern. A leading "/" or "./"
// anchors the pattern at the root.
type excludeRule struct {
	prefix string
	glob   glob.Glob
}

// compileExcludes compiles patterns once per scan. Empty patterns are
// dropped; a pattern that is not a valid glob still excludes by prefix.
func compileExcludes(patterns []string) []excludeRule {
	rules := make([]excludeRule, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimPrefix(strings.TrimPrefix(p, "./"), "/")
		if p == "" {
			continue
		}
		r := excludeRule{prefix: p}
		if g, err := glob.Compile(p, '/'); err == nil {
			r.glob = g
		} else {
			logger.Debug("exclude pattern is not a glob", "pattern", p, "error", err)
		}
		rules = append(rules, r)
	}
	return rules
}

// match reports whether rel is the prefix, lies below it, or matches the
// glob by basename or full relative path.
func (r excludeRule) match(rel string) bool {
	if rel == r.prefix || strings.HasPrefix(rel, r.prefix+"/") {
		return true
	}
	if r.glob == nil {
		return false
	}
	return r.glob.Match(path.Base(rel)) || r.glob.Match(rel)
}

// comparePaths orders manifest paths so that a directory comes before its
// contents and its contents come before its next sibling.
func comparePaths(a, b string) int {
	return slices.Compare(strings.Split(a, "/"), strings.Split(b, "/"))
}
