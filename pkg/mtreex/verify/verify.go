// Package verify checks a directory tree against an mtree manifest and
// reports missing paths, unexpected paths, and keyword mismatches.
package verify

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/mtreex/pkg/mtreex/cache"
	"github.com/jamesainslie/mtreex/pkg/mtreex/digest"
	"github.com/jamesainslie/mtreex/pkg/mtreex/logging"
	"github.com/jamesainslie/mtreex/pkg/mtreex/mtree"
	"github.com/jamesainslie/mtreex/pkg/mtreex/scanner"
	"github.com/jamesainslie/mtreex/pkg/mtreex/tuner"
)

var logger = logging.Get("verify")

// ErrNotDirectory is returned when the tree root is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// statKeywords lists the keywords checked against the filesystem, in the
// order mismatches are reported for one path.
var statKeywords = []string{
	mtree.KeywordType,
	mtree.KeywordMode,
	mtree.KeywordUid,
	mtree.KeywordUname,
	mtree.KeywordGid,
	mtree.KeywordGname,
	mtree.KeywordNlink,
	mtree.KeywordSize,
	mtree.KeywordLink,
	mtree.KeywordDevice,
	mtree.KeywordTime,
}

// Options configures a Verifier.
type Options struct {
	// Keywords restricts the comparison to these keywords. Empty compares
	// every keyword the manifest records.
	Keywords []string

	// SkipExtra disables the walk that reports paths absent from the manifest.
	SkipExtra bool

	// Workers overrides the number of files hashed concurrently.
	Workers int

	// Cache is an optional digest cache. If nil, every file is hashed.
	Cache *cache.Cache
}

// Mismatch is one keyword whose recorded value differs from the tree.
type Mismatch struct {
	Path     string `json:"path" yaml:"path"`
	Keyword  string `json:"keyword" yaml:"keyword"`
	Expected string `json:"expected" yaml:"expected"`
	Actual   string `json:"actual" yaml:"actual"`
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: %s expected %q, found %q", m.Path, m.Keyword, m.Expected, m.Actual)
}

// Report is the outcome of a verification.
type Report struct {
	Root       string     `json:"root" yaml:"root"`
	Checked    int        `json:"checked" yaml:"checked"`
	Missing    []string   `json:"missing,omitempty" yaml:"missing,omitempty"`
	Extra      []string   `json:"extra,omitempty" yaml:"extra,omitempty"`
	Mismatches []Mismatch `json:"mismatches,omitempty" yaml:"mismatches,omitempty"`
	Errors     []string   `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// OK reports whether the tree matched the manifest.
func (r *Report) OK() bool {
	return len(r.Missing) == 0 && len(r.Extra) == 0 && len(r.Mismatches) == 0 && len(r.Errors) == 0
}

// Problems returns the number of findings.
func (r *Report) Problems() int {
	return len(r.Missing) + len(r.Extra) + len(r.Mismatches) + len(r.Errors)
}

// Verifier compares manifests with directory trees.
type Verifier struct {
	opts Options
}

// New creates a Verifier.
func New(opts Options) *Verifier {
	return &Verifier{opts: opts}
}

// Verify compares every entry of doc with the tree at root.
//
// Entries marked optional may be missing. Entries marked nochange are only
// checked for existence. Nothing below an entry marked ignore is checked,
// and no extra paths are reported below it.
func (v *Verifier) Verify(ctx context.Context, doc *mtree.Document, root string) (*Report, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", root, ErrNotDirectory)
	}

	var c digest.Cache
	if v.opts.Cache != nil {
		c = v.opts.Cache
	}
	run := &run{
		opts:    v.opts,
		root:    root,
		hasher:  digest.NewHasher(c),
		report:  &Report{Root: root},
		ignored: ignoredDirs(doc),
		order:   make(map[string]int, doc.Len()),
	}
	for i, p := range doc.Paths() {
		run.order[p] = i
	}

	if err := run.checkEntries(ctx, doc); err != nil {
		return nil, err
	}
	if !v.opts.SkipExtra {
		if err := run.findExtra(ctx, doc); err != nil {
			return nil, err
		}
	}
	run.sort()

	logger.Info("verify complete", "root", root, "checked", run.report.Checked,
		"missing", len(run.report.Missing), "extra", len(run.report.Extra),
		"mismatches", len(run.report.Mismatches))
	return run.report, nil
}

// run holds the state of one verification.
type run struct {
	opts    Options
	root    string
	hasher  *digest.Hasher
	ignored []string
	order   map[string]int

	mu     sync.Mutex
	report *Report
}

type digestJob struct {
	entry mtree.Entry
	rel   string
	info  fs.FileInfo
	algos []string
}

func (r *run) checkEntries(ctx context.Context, doc *mtree.Document) error {
	var jobs []digestJob

	for _, e := range doc.Entries() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.isIgnored(e.Path) {
			continue
		}

		rel := strings.TrimPrefix(e.Path, "/")
		full := filepath.Join(r.root, filepath.FromSlash(rel))
		info, err := os.Lstat(full)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				if !e.Attrs.Bool(mtree.KeywordOptional) {
					r.report.Missing = append(r.report.Missing, e.Path)
				}
				continue
			}
			r.report.Errors = append(r.report.Errors, fmt.Sprintf("%s: %v", e.Path, err))
			continue
		}
		r.report.Checked++

		if e.Attrs.Bool(mtree.KeywordNochange) {
			continue
		}

		if !r.compareStat(e, full, info) {
			continue
		}

		algos := r.digestKeywords(e)
		if len(algos) > 0 && info.Mode().IsRegular() {
			jobs = append(jobs, digestJob{entry: e, rel: rel, info: info, algos: algos})
		}
	}

	return r.checkDigests(ctx, jobs)
}

// compareStat checks the non-digest keywords. It returns false when the
// type differs, since the remaining keywords are then meaningless.
func (r *run) compareStat(e mtree.Entry, full string, info fs.FileInfo) bool {
	var keys []string
	for _, k := range statKeywords {
		if r.wants(k) && e.Attrs.Has(k) && !mtree.IsNone(e.Attrs[k]) {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return true
	}

	actual, err := scanner.Describe(full, info, keys)
	if err != nil {
		r.report.Errors = append(r.report.Errors, fmt.Sprintf("%s: %v", e.Path, err))
	}

	for _, k := range keys {
		want := e.Attrs[k]
		got, ok := actual[k]
		if !ok {
			// The keyword does not apply to what is on disk, such as a
			// size recorded for what is now a directory.
			r.addMismatch(e.Path, k, want, nil)
			continue
		}
		if !sameValue(k, want, got) {
			r.addMismatch(e.Path, k, want, got)
			if k == mtree.KeywordType {
				return false
			}
		}
	}
	return true
}

func (r *run) checkDigests(ctx context.Context, jobs []digestJob) error {
	if len(jobs) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(tuner.Auto(r.opts.Workers).Digest)

	for _, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sums, err := r.hasher.Sum(r.root, job.rel, job.info, job.algos)
			if err != nil {
				r.mu.Lock()
				r.report.Errors = append(r.report.Errors, fmt.Sprintf("%s: %v", job.entry.Path, err))
				r.mu.Unlock()
				return nil
			}
			for _, algo := range job.algos {
				want := job.entry.Attrs[algo]
				got := sums[algo]
				if algo == mtree.KeywordCksum {
					n, _ := strconv.ParseInt(got, 10, 64)
					if want != n {
						r.addMismatch(job.entry.Path, algo, want, n)
					}
					continue
				}
				if s, _ := want.(string); !strings.EqualFold(s, got) {
					r.addMismatch(job.entry.Path, algo, want, got)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// findExtra walks the tree and records paths the manifest does not list.
// An unlisted directory is reported once, without its contents. Directories
// implied by a listed path are not extra.
func (r *run) findExtra(ctx context.Context, doc *mtree.Document) error {
	conf := fastwalk.Config{Follow: false}
	var mu sync.Mutex

	implied := map[string]bool{}
	for _, p := range doc.Paths() {
		for dir := path.Dir(p); dir != "/" && !implied[dir]; dir = path.Dir(dir) {
			implied[dir] = true
		}
	}

	err := fastwalk.Walk(&conf, r.root, func(full string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			return nil
		}
		if full == r.root {
			return nil
		}

		rel, relErr := filepath.Rel(r.root, full)
		if relErr != nil {
			return nil
		}
		p := "/" + filepath.ToSlash(rel)

		if r.isIgnored(p) {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}
		if _, ok := doc.Get(p); ok || implied[p] {
			return nil
		}

		mu.Lock()
		r.report.Extra = append(r.report.Extra, p)
		mu.Unlock()
		if d.IsDir() {
			return fastwalk.SkipDir
		}
		return nil
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (r *run) addMismatch(p, keyword string, want, got any) {
	m := Mismatch{Path: p, Keyword: keyword, Expected: valueText(want), Actual: valueText(got)}
	r.mu.Lock()
	r.report.Mismatches = append(r.report.Mismatches, m)
	r.mu.Unlock()
}

// wants reports whether keyword k takes part in the comparison.
func (r *run) wants(k string) bool {
	if len(r.opts.Keywords) == 0 {
		return true
	}
	for _, w := range r.opts.Keywords {
		if mtree.NormalizeKeyword(w) == k {
			return true
		}
	}
	return false
}

// digestKeywords returns the checksums e records that should be compared.
func (r *run) digestKeywords(e mtree.Entry) []string {
	var out []string
	for _, algo := range digest.Algorithms {
		if r.wants(algo) && e.Attrs.Has(algo) && !mtree.IsNone(e.Attrs[algo]) {
			out = append(out, algo)
		}
	}
	return out
}

// isIgnored reports whether p lies strictly below an ignored directory.
func (r *run) isIgnored(p string) bool {
	for _, dir := range r.ignored {
		if p == dir {
			continue
		}
		if dir == "/" || strings.HasPrefix(p, dir+"/") {
			return true
		}
	}
	return false
}

// sort puts findings in manifest order, with extras by path.
func (r *run) sort() {
	slices.SortStableFunc(r.report.Missing, func(a, b string) int {
		return cmp.Compare(r.order[a], r.order[b])
	})
	slices.SortStableFunc(r.report.Mismatches, func(a, b Mismatch) int {
		if c := cmp.Compare(r.order[a.Path], r.order[b.Path]); c != 0 {
			return c
		}
		return cmp.Compare(keywordRank(a.Keyword), keywordRank(b.Keyword))
	})
	slices.Sort(r.report.Extra)
}

func keywordRank(k string) int {
	if i := slices.Index(statKeywords, k); i >= 0 {
		return i
	}
	return len(statKeywords) + slices.Index(digest.Algorithms, k)
}

// ignoredDirs returns the paths of entries carrying the ignore keyword.
func ignoredDirs(doc *mtree.Document) []string {
	var out []string
	for _, e := range doc.Entries() {
		if e.Attrs.Bool(mtree.KeywordIgnore) {
			out = append(out, path.Clean(e.Path))
		}
	}
	return out
}
