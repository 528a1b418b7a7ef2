package filter

import (
	"cmp"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"github.com/jamesainslie/mtreex/pkg/mtreex/logging"
	"github.com/jamesainslie/mtreex/pkg/mtreex/mtree"
)

var logger = logging.Get("filter")

// Filter defines criteria for selecting, sorting, and limiting manifest entries.
type Filter struct {
	// Types restricts entries to these types. Entries without a type
	// keyword count as files.
	Types []mtree.EntryType

	// Include contains glob patterns. If non-empty, entries must match at least one.
	// Patterns without a '/' match the entry name, others the full path.
	Include []string

	// Exclude contains glob patterns. Matching entries are excluded.
	Exclude []string

	// MinSize is the minimum size keyword in bytes. Entries without a size
	// are excluded when set.
	MinSize int64

	// MaxSize is the maximum size in bytes. 0 means unlimited.
	MaxSize int64

	// OlderThan keeps entries whose time is at least this long ago.
	OlderThan time.Duration

	// NewerThan keeps entries whose time is within this duration.
	NewerThan time.Duration

	// MaxDepth limits path depth ("/a/b" is depth 2). 0 means unlimited.
	MaxDepth int

	// SortBy specifies the field to sort results by.
	SortBy SortField

	// SortDescending specifies whether to sort in descending order.
	SortDescending bool

	// Limit is the maximum number of entries to return. 0 means unlimited.
	Limit int

	// Now is the reference time for age criteria. Zero means time.Now.
	Now time.Time

	include []compiledPattern
	exclude []compiledPattern
}

// Option is a functional option for configuring a Filter.
type Option func(*Filter)

// New creates a new Filter with the given options.
// The zero configuration keeps every entry in manifest order.
func New(opts ...Option) *Filter {
	f := &Filter{}
	for _, opt := range opts {
		opt(f)
	}
	f.include = compilePatterns(f.Include)
	f.exclude = compilePatterns(f.Exclude)
	return f
}

// WithTypes restricts entries to the given types.
func WithTypes(types ...mtree.EntryType) Option {
	return func(f *Filter) {
		f.Types = types
	}
}

// WithInclude sets the include glob patterns.
func WithInclude(patterns ...string) Option {
	return func(f *Filter) {
		f.Include = patterns
	}
}

// WithExclude sets the exclude glob patterns.
func WithExclude(patterns ...string) Option {
	return func(f *Filter) {
		f.Exclude = patterns
	}
}

// WithMinSize sets the minimum size in bytes.
func WithMinSize(size int64) Option {
	return func(f *Filter) {
		f.MinSize = size
	}
}

// WithMaxSize sets the maximum size in bytes.
func WithMaxSize(size int64) Option {
	return func(f *Filter) {
		f.MaxSize = size
	}
}

// WithOlderThan keeps only entries older than d.
func WithOlderThan(d time.Duration) Option {
	return func(f *Filter) {
		f.OlderThan = d
	}
}

// WithNewerThan keeps only entries newer than d.
func WithNewerThan(d time.Duration) Option {
	return func(f *Filter) {
		f.NewerThan = d
	}
}

// WithMaxDepth sets the maximum path depth.
func WithMaxDepth(depth int) Option {
	return func(f *Filter) {
		f.MaxDepth = depth
	}
}

// WithSortBy sets the sort field.
func WithSortBy(field SortField) Option {
	return func(f *Filter) {
		f.SortBy = field
	}
}

// WithSortDescending sets the sort order.
func WithSortDescending(desc bool) Option {
	return func(f *Filter) {
		f.SortDescending = desc
	}
}

// WithLimit sets the maximum number of entries returned.
func WithLimit(n int) Option {
	return func(f *Filter) {
		f.Limit = n
	}
}

// WithNow pins the reference time used by the age criteria.
func WithNow(t time.Time) Option {
	return func(f *Filter) {
		f.Now = t
	}
}

// IsZero reports whether the filter keeps every entry unchanged.
func (f *Filter) IsZero() bool {
	return len(f.Types) == 0 && len(f.Include) == 0 && len(f.Exclude) == 0 &&
		f.MinSize == 0 && f.MaxSize == 0 && f.OlderThan == 0 && f.NewerThan == 0 &&
		f.MaxDepth == 0 && f.SortBy == SortManifest && !f.SortDescending && f.Limit == 0
}

// Apply returns a new document holding the matching entries, sorted and
// limited. The header and warnings of d are carried over.
func (f *Filter) Apply(d *mtree.Document) *mtree.Document {
	now := f.Now
	if now.IsZero() {
		now = time.Now()
	}

	var kept []mtree.Entry
	for _, e := range d.Entries() {
		if f.matches(e, now) {
			kept = append(kept, e)
		}
	}

	f.sort(kept)

	if f.Limit > 0 && len(kept) > f.Limit {
		kept = kept[:f.Limit]
	}

	out := mtree.NewDocument(d.Header)
	for _, e := range kept {
		out.Add(e)
	}
	out.CopyNotes(d)

	logger.Debug("filter applied", "in", d.Len(), "out", out.Len())
	return out
}

// Match reports whether e passes every criterion of the filter.
func (f *Filter) Match(e mtree.Entry) bool {
	now := f.Now
	if now.IsZero() {
		now = time.Now()
	}
	return f.matches(e, now)
}

func (f *Filter) matches(e mtree.Entry, now time.Time) bool {
	if len(f.Types) > 0 {
		t := e.Attrs.Type()
		if t == "" {
			t = mtree.TypeFile
		}
		if !slices.Contains(f.Types, t) {
			return false
		}
	}

	if f.MinSize > 0 || f.MaxSize > 0 {
		size, ok := e.Attrs.Int(mtree.KeywordSize)
		if !ok {
			return false
		}
		if size < f.MinSize {
			return false
		}
		if f.MaxSize > 0 && size > f.MaxSize {
			return false
		}
	}

	if f.OlderThan > 0 || f.NewerThan > 0 {
		mtime, ok := e.Attrs.Time()
		if !ok {
			return false
		}
		age := now.Sub(mtime)
		if f.OlderThan > 0 && age < f.OlderThan {
			return false
		}
		if f.NewerThan > 0 && age > f.NewerThan {
			return false
		}
	}

	if f.MaxDepth > 0 && depth(e.Path) > f.MaxDepth {
		return false
	}

	if len(f.include) > 0 && !matchesAny(f.include, e.Path) {
		return false
	}
	if len(f.exclude) > 0 && matchesAny(f.exclude, e.Path) {
		return false
	}

	return true
}

func (f *Filter) sort(entries []mtree.Entry) {
	if f.SortBy == SortManifest {
		if f.SortDescending {
			slices.Reverse(entries)
		}
		return
	}

	compare := func(a, b mtree.Entry) int {
		var c int
		switch f.SortBy {
		case SortSize:
			c = cmp.Compare(a.Attrs.Size(), b.Attrs.Size())
		case SortTime:
			ta, _ := a.Attrs.Time()
			tb, _ := b.Attrs.Time()
			c = ta.Compare(tb)
		case SortType:
			c = cmp.Compare(a.Attrs.Type(), b.Attrs.Type())
		}
		if c == 0 {
			c = cmp.Compare(a.Path, b.Path)
		}
		if f.SortDescending {
			c = -c
		}
		return c
	}
	slices.SortStableFunc(entries, compare)
}

// compiledPattern pairs a glob with whether it applies to the name or the
// full path.
type compiledPattern struct {
	glob.Glob
	full bool
}

func compilePatterns(patterns []string) []compiledPattern {
	out := make([]compiledPattern, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			logger.Warn("skipping invalid pattern", "pattern", p, "error", err)
			continue
		}
		out = append(out, compiledPattern{Glob: g, full: strings.Contains(p, "/")})
	}
	return out
}

// matchesAny reports whether p matches any pattern. Name patterns are
// tried against the last path element.
func matchesAny(patterns []compiledPattern, p string) bool {
	name := path.Base(p)
	for _, g := range patterns {
		subject := name
		if g.full {
			subject = p
		}
		if g.Match(subject) {
			return true
		}
	}
	return false
}

// depth counts the path elements of p; the root has depth 0.
func depth(p string) int {
	p = strings.Trim(p, "/")
	if p == "" {
		return 0
	}
	return strings.Count(p, "/") + 1
}
