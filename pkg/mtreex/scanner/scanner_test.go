package scanner

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/mtreex/pkg/mtreex/cache"
	"github.com/jamesainslie/mtreex/pkg/mtreex/mtree"
)

// createTestDir builds:
//
//	root/
//	  a.txt        "hello"
//	  docs/
//	    readme.md  "read me"
//	    notes/
//	      n1.txt   ""
//	  build/
//	    out.o      "object"
//	  link -> a.txt
func createTestDir(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	files := map[string]string{
		"a.txt":             "hello",
		"docs/readme.md":    "read me",
		"docs/notes/n1.txt": "",
		"build/out.o":       "object",
	}
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		require.NoError(t, os.Chmod(p, 0o644))
	}
	require.NoError(t, os.Symlink("a.txt", filepath.Join(root, "link")))
	return root
}

func scan(t *testing.T, opts Options) *mtree.Document {
	t.Helper()
	doc, err := New(opts).Scan(context.Background())
	require.NoError(t, err)
	return doc
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		want    []string
		wantErr bool
	}{
		{name: "defaults", opts: Options{}, want: DefaultKeywords},
		{name: "synonyms normalized and deduplicated", opts: Options{Keywords: []string{"sha256digest", "sha256", "type"}}, want: []string{"sha256", "type"}},
		{name: "cksum and devices", opts: Options{Keywords: []string{"cksum", "device", "nlink"}}, want: []string{"cksum", "device", "nlink"}},
		{name: "unsupported", opts: Options{Keywords: []string{"type", "ignore"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedKeyword)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, tt.opts.Keywords)
			assert.NotEmpty(t, tt.opts.Root)
		})
	}
}

func TestScanBasic(t *testing.T) {
	root := createTestDir(t)
	doc := scan(t, Options{Root: root})

	assert.Equal(t, []string{
		"/",
		"/a.txt",
		"/build",
		"/build/out.o",
		"/docs",
		"/docs/notes",
		"/docs/notes/n1.txt",
		"/docs/readme.md",
		"/link",
	}, doc.Paths())

	rootEntry, ok := doc.Get("/")
	require.True(t, ok)
	assert.Equal(t, mtree.TypeDir, rootEntry.Attrs.Type())
	assert.False(t, rootEntry.Attrs.Has(mtree.KeywordSize), "directories carry no size")

	file, ok := doc.Get("/a.txt")
	require.True(t, ok)
	assert.Equal(t, mtree.TypeFile, file.Attrs.Type())
	assert.Equal(t, int64(5), file.Attrs.Size())
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", file.Attrs[mtree.KeywordSHA256])
	mode, ok := file.Attrs.Mode()
	require.True(t, ok)
	assert.Equal(t, mtree.Mode(0o644), mode)

	link, ok := doc.Get("/link")
	require.True(t, ok)
	assert.Equal(t, mtree.TypeLink, link.Attrs.Type())
	assert.Equal(t, "a.txt", link.Attrs[mtree.KeywordLink])
	assert.False(t, link.Attrs.Has(mtree.KeywordSHA256), "links are not hashed")

	assert.Equal(t, root, doc.Header.Tree)
	assert.False(t, doc.Header.Date.IsZero())
	assert.Empty(t, doc.Warnings())
}

func TestScanHeaderDate(t *testing.T) {
	root := createTestDir(t)
	fixed := time.Date(2024, 3, 1, 12, 30, 45, 999, time.FixedZone("X", 3600))

	doc := scan(t, Options{Root: root, Now: func() time.Time { return fixed }})

	assert.Equal(t, time.Date(2024, 3, 1, 11, 30, 45, 0, time.UTC), doc.Header.Date)
}

func TestScanKeywordSelection(t *testing.T) {
	root := createTestDir(t)
	doc := scan(t, Options{Root: root, Keywords: []string{"type", "md5digest", "cksum", "nlink", "uname"}})

	e, ok := doc.Get("/a.txt")
	require.True(t, ok)
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", e.Attrs[mtree.KeywordMD5])
	assert.IsType(t, int64(0), e.Attrs[mtree.KeywordCksum])
	assert.False(t, e.Attrs.Has(mtree.KeywordSize))
	assert.False(t, e.Attrs.Has(mtree.KeywordTime))

	if runtime.GOOS != "windows" {
		assert.Equal(t, int64(1), e.Attrs[mtree.KeywordNlink])
		assert.NotEmpty(t, e.Attrs[mtree.KeywordUname])
	}
}

func TestScanWithExclusions(t *testing.T) {
	tests := []struct {
		name    string
		exclude []string
		absent  []string
		present []string
	}{
		{
			name:    "directory prefix",
			exclude: []string{"build"},
			absent:  []string{"/build", "/build/out.o"},
			present: []string{"/docs/readme.md"},
		},
		{
			name:    "anchored",
			exclude: []string{"./docs/notes"},
			absent:  []string{"/docs/notes", "/docs/notes/n1.txt"},
			present: []string{"/docs", "/docs/readme.md"},
		},
		{
			name:    "basename glob",
			exclude: []string{"*.txt"},
			absent:  []string{"/a.txt", "/docs/notes/n1.txt"},
			present: []string{"/docs/notes", "/build/out.o"},
		},
		{
			name:    "path glob",
			exclude: []string{"docs/*.md"},
			absent:  []string{"/docs/readme.md"},
			present: []string{"/a.txt", "/docs/notes/n1.txt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := scan(t, Options{Root: createTestDir(t), Exclude: tt.exclude})
			paths := doc.Paths()
			for _, p := range tt.absent {
				assert.NotContains(t, paths, p)
			}
			for _, p := range tt.present {
				assert.Contains(t, paths, p)
			}
		})
	}
}

func TestScanContextCancellation(t *testing.T) {
	root := createTestDir(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Options{Root: root}).Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScanProgress(t *testing.T) {
	root := createTestDir(t)

	var calls atomic.Int64
	var sawComplete atomic.Bool
	scan(t, Options{Root: root, OnProgress: func(p Progress) {
		calls.Add(1)
		if p.WalkComplete {
			sawComplete.Store(true)
		}
	}})

	assert.GreaterOrEqual(t, calls.Load(), int64(2))
	assert.True(t, sawComplete.Load())
}

func TestScanRootErrors(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		_, err := New(Options{Root: filepath.Join(t.TempDir(), "nope")}).Scan(context.Background())
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("file", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "f")
		require.NoError(t, os.WriteFile(p, nil, 0o644))
		_, err := New(Options{Root: p}).Scan(context.Background())
		assert.ErrorIs(t, err, ErrNotDirectory)
	})

	t.Run("bad keyword", func(t *testing.T) {
		_, err := New(Options{Root: t.TempDir(), Keywords: []string{"tags"}}).Scan(context.Background())
		assert.ErrorIs(t, err, ErrUnsupportedKeyword)
	})
}

func TestScanPermissionErrors(t *testing.T) {
	if os.Getuid() == 0 || runtime.GOOS == "windows" {
		t.Skip("permission bits are not enforced")
	}

	root := createTestDir(t)
	noRead := filepath.Join(root, "noread")
	require.NoError(t, os.Mkdir(noRead, 0o000))
	t.Cleanup(func() { _ = os.Chmod(noRead, 0o755) })

	s := New(Options{Root: root})
	doc, err := s.Scan(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, s.Errors())
	assert.NotEmpty(t, doc.Warnings())
	assert.Contains(t, doc.Paths(), "/docs/readme.md")
}

func TestScanEmptyDirectory(t *testing.T) {
	doc := scan(t, Options{Root: t.TempDir()})
	assert.Equal(t, []string{"/"}, doc.Paths())
}

func TestScanUsesDigestCache(t *testing.T) {
	root := createTestDir(t)
	c, err := cache.Open(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	first := scan(t, Options{Root: root, Cache: c})

	var hits atomic.Int64
	second := scan(t, Options{Root: root, Cache: c, OnProgress: func(p Progress) {
		hits.Store(p.CacheHits)
	}})
	assert.Equal(t, int64(4), hits.Load())

	for _, p := range first.Paths() {
		a, _ := first.Get(p)
		b, _ := second.Get(p)
		assert.Equal(t, a.Attrs[mtree.KeywordSHA256], b.Attrs[mtree.KeywordSHA256], p)
	}

	stats, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Entries)
}

func TestExcludeRules(t *testing.T) {
	tests := []struct {
		rel     string
		pattern string
		want    bool
	}{
		{rel: "build", pattern: "build", want: true},
		{rel: "build/x.o", pattern: "build", want: true},
		{rel: "builder", pattern: "build", want: false},
		{rel: "a/b/c.tmp", pattern: "*.tmp", want: true},
		{rel: "a/b/c.tmp", pattern: "/a", want: true},
		{rel: "a/b/c.tmp", pattern: "./a/b", want: true},
		{rel: "a/b/c.tmp", pattern: "a/*/c.tmp", want: true},
		{rel: "a/b/c.tmp", pattern: "", want: false},
		{rel: "a/b/c.tmp", pattern: "[", want: false},
		{rel: "[", pattern: "[", want: true},
		{rel: "a/b/c.tmp", pattern: "a/**.tmp", want: true},
		{rel: "a/b/c.tmp", pattern: "{x,c}.tmp", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.rel+"|"+tt.pattern, func(t *testing.T) {
			s := &Scanner{excludes: compileExcludes([]string{tt.pattern})}
			assert.Equal(t, tt.want, s.isExcluded(tt.rel))
		})
	}
}

func TestComparePaths(t *testing.T) {
	paths := []string{"/b", "/a/z", "/a b", "/", "/a", "/a/b/c"}
	want := []string{"/", "/a", "/a/b/c", "/a/z", "/a b", "/b"}

	slices.SortFunc(paths, comparePaths)
	assert.Equal(t, want, paths)
}
