package mtree_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jamesainslie/mtreex/pkg/mtreex/mtree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `#	   user: root
#	machine: build01
#	   tree: /srv/www/
#	   date: Tue Jan 16 10:30:00 2024

# .
/set type=file uid=0 gid=0 mode=0644 nlink=1
. type=dir mode=0755 nlink=4 time=1705400000.500000000

# ./etc
etc type=dir mode=0755 nlink=2
    passwd size=1024 sha256digest=abcd time=1705400100.0
    shadow mode=0600 size=512 optional
# ./etc
..

var type=dir mode=0755
    log type=link link=/tmp
..
`

func TestParseSample(t *testing.T) {
	t.Parallel()

	doc, err := mtree.Parse(sampleManifest)
	require.NoError(t, err)

	t.Run("header", func(t *testing.T) {
		assert.Equal(t, "root", doc.Header.User)
		assert.Equal(t, "build01", doc.Header.Machine)
		assert.Equal(t, "/srv/www", doc.Header.Tree)
		assert.Equal(t, time.Date(2024, time.January, 16, 10, 30, 0, 0, time.UTC), doc.Header.Date)
	})

	t.Run("entries in manifest order", func(t *testing.T) {
		assert.Equal(t, []string{"/", "/etc", "/etc/passwd", "/etc/shadow", "/var", "/var/log"}, doc.Paths())
	})

	t.Run("overlay and inline attributes", func(t *testing.T) {
		passwd, ok := doc.Get("/etc/passwd")
		require.True(t, ok)
		assert.Equal(t, mtree.TypeFile, passwd.Attrs.Type())
		mode, ok := passwd.Attrs.Mode()
		require.True(t, ok)
		assert.Equal(t, mtree.Mode(0o644), mode)
		assert.Equal(t, int64(1024), passwd.Attrs.Size())
		assert.Equal(t, "abcd", passwd.Attrs[mtree.KeywordSHA256])
		assert.NotContains(t, passwd.Attrs, "sha256digest")

		shadow, ok := doc.Get("/etc/shadow")
		require.True(t, ok)
		mode, _ = shadow.Attrs.Mode()
		assert.Equal(t, mtree.Mode(0o600), mode)
		assert.True(t, shadow.Attrs.Bool(mtree.KeywordOptional))
	})

	t.Run("records line numbers", func(t *testing.T) {
		passwd, _ := doc.Get("/etc/passwd")
		assert.Equal(t, 12, passwd.Line)
	})

	t.Run("fractional time", func(t *testing.T) {
		root, _ := doc.Get("/")
		ts, ok := root.Attrs.Time()
		require.True(t, ok)
		assert.Equal(t, int64(1705400000), ts.Unix())
		assert.Equal(t, 500000000, ts.Nanosecond())
	})

	t.Run("no warnings", func(t *testing.T) {
		assert.Empty(t, doc.Warnings())
		assert.Empty(t, doc.UnknownKeywords())
	})
}

func TestScalarRoundTrip(t *testing.T) {
	t.Parallel()

	doc, err := mtree.Parse("f type=file mode=0755 uid=1000 gid=100 size=4096 cksum=3632233996 nlink=3\n")
	require.NoError(t, err)
	entry, ok := doc.Get("/f")
	require.True(t, ok)

	mode, ok := entry.Attrs.Mode()
	require.True(t, ok)
	assert.Equal(t, mtree.Mode(493), mode)
	assert.Equal(t, "0755", mode.String())

	var line string
	for _, key := range entry.Attrs.Keys() {
		kw, ok := mtree.FormatKeyword(key, entry.Attrs[key])
		require.True(t, ok)
		line += " " + kw
	}

	again, err := mtree.Parse("f" + line + "\n")
	require.NoError(t, err)
	reparsed, _ := again.Get("/f")
	assert.Equal(t, entry.Attrs, reparsed.Attrs)
}

func TestDigestSynonyms(t *testing.T) {
	t.Parallel()

	doc, err := mtree.Parse("a type=file sha256=ABCD\nb type=file sha256digest=ABCD\n")
	require.NoError(t, err)

	a, _ := doc.Get("/a")
	b, _ := doc.Get("/b")
	assert.Equal(t, a.Attrs, b.Attrs)
	assert.Equal(t, "ABCD", b.Attrs[mtree.KeywordSHA256])
}

func TestGlobalOverlay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		text    string
		path    string
		wantUID int64
		hasUID  bool
		hasMode bool
	}{
		{
			name:    "set applies to items without the keyword",
			text:    "/set uid=0\nf type=file\n",
			path:    "/f",
			wantUID: 0,
			hasUID:  true,
		},
		{
			name:    "inline keyword wins",
			text:    "/set uid=0\nf type=file uid=1000\n",
			path:    "/f",
			wantUID: 1000,
			hasUID:  true,
		},
		{
			name: "unset reverts to not overridden",
			text: "/set mode=0644\n/unset mode\nf type=file\n",
			path: "/f",
		},
		{
			name: "unset all clears everything",
			text: "/set mode=0644 uid=0\n/unset all\nf\n",
			path: "/f",
		},
		{
			name:    "all among other keys is a plain key",
			text:    "/set mode=0644 uid=0\n/unset mode all\nf type=file\n",
			path:    "/f",
			wantUID: 0,
			hasUID:  true,
		},
		{
			name:    "unset of absent key is a no-op",
			text:    "/set uid=0\n/unset gid\nf type=file\n",
			path:    "/f",
			wantUID: 0,
			hasUID:  true,
		},
		{
			name:    "later set overwrites",
			text:    "/set uid=0 mode=0600\n/set uid=5\nf type=file\n",
			path:    "/f",
			wantUID: 5,
			hasUID:  true,
			hasMode: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			doc, err := mtree.Parse(tt.text)
			require.NoError(t, err)
			entry, ok := doc.Get(tt.path)
			require.True(t, ok)

			uid, ok := entry.Attrs.Int(mtree.KeywordUid)
			assert.Equal(t, tt.hasUID, ok)
			if tt.hasUID {
				assert.Equal(t, tt.wantUID, uid)
			}
			_, ok = entry.Attrs.Mode()
			assert.Equal(t, tt.hasMode, ok)
		})
	}
}

func TestUnsetDigestSynonym(t *testing.T) {
	t.Parallel()

	doc, err := mtree.Parse("/set sha1=ff\n/unset sha1digest\nf type=file\n")
	require.NoError(t, err)
	entry, _ := doc.Get("/f")
	assert.NotContains(t, entry.Attrs, mtree.KeywordSHA1)
}

func TestOverlayDoesNotLeakIntoEarlierEntries(t *testing.T) {
	t.Parallel()

	doc, err := mtree.Parse("/set flags=a,b\nf type=file\n/set flags=c\ng type=file\n")
	require.NoError(t, err)

	f, _ := doc.Get("/f")
	g, _ := doc.Get("/g")
	assert.Equal(t, []string{"a", "b"}, f.Attrs.List(mtree.KeywordFlags))
	assert.Equal(t, []string{"c"}, g.Attrs.List(mtree.KeywordFlags))
}

func TestDirectoryPathStack(t *testing.T) {
	t.Parallel()

	t.Run("children and siblings", func(t *testing.T) {
		doc, err := mtree.Parse("etc type=dir\npasswd type=file\n..\nvar type=dir\n")
		require.NoError(t, err)
		assert.Equal(t, []string{"/etc", "/etc/passwd", "/var"}, doc.Paths())
	})

	t.Run("pop token variants", func(t *testing.T) {
		for _, pop := range []string{".", "..", "../", "  ..  "} {
			doc, err := mtree.Parse("a type=dir\nb type=dir\n" + pop + "\nc type=file\n")
			require.NoError(t, err, pop)
			_, ok := doc.Get("/a/c")
			assert.True(t, ok, "pop %q", pop)
		}
	})

	t.Run("parent of root is root", func(t *testing.T) {
		doc, err := mtree.Parse("..\n..\nf type=file\n")
		require.NoError(t, err)
		assert.Equal(t, []string{"/f"}, doc.Paths())
	})

	t.Run("dot item is the root", func(t *testing.T) {
		doc, err := mtree.Parse(". type=dir mode=0755\nf type=file\n")
		require.NoError(t, err)
		assert.Equal(t, []string{"/", "/f"}, doc.Paths())
	})

	t.Run("names with slashes are cleaned", func(t *testing.T) {
		doc, err := mtree.Parse("./usr/bin type=dir\n../x type=file\n")
		require.NoError(t, err)
		assert.Equal(t, []string{"/usr/bin", "/usr/x"}, doc.Paths())
	})

	t.Run("dir type from overlay moves into directory", func(t *testing.T) {
		doc, err := mtree.Parse("/set type=dir\na\nb\n")
		require.NoError(t, err)
		assert.Equal(t, []string{"/a", "/a/b"}, doc.Paths())
	})
}

func TestLineContinuation(t *testing.T) {
	t.Parallel()

	joined, err := mtree.Parse("f type=file mode=0644 uid=0 size=10\n")
	require.NoError(t, err)

	for name, text := range map[string]string{
		"leading whitespace":        "f type=file mode=0644 \\\n    uid=0 size=10\n",
		"blanks after backslash":    "f type=file mode=0644 \\  \n\tuid=0 \\\n size=10\n",
		"crlf":                      "f type=file mode=0644 \\\r\n    uid=0 size=10\r\n",
		"no space before backslash": "f type=file mode=0644\\\n    uid=0 size=10\n",
	} {
		t.Run(name, func(t *testing.T) {
			doc, err := mtree.Parse(text)
			require.NoError(t, err)
			assert.Equal(t, joined.Paths(), doc.Paths())
			a, _ := joined.Get("/f")
			b, _ := doc.Get("/f")
			assert.Equal(t, a.Attrs, b.Attrs)
		})
	}

	t.Run("line numbers count physical lines", func(t *testing.T) {
		doc, err := mtree.Parse("a type=file \\\n  size=1\nb type=file\n")
		require.NoError(t, err)
		a, _ := doc.Get("/a")
		b, _ := doc.Get("/b")
		assert.Equal(t, 1, a.Line)
		assert.Equal(t, 3, b.Line)
	})
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want error
		line int
	}{
		{"unknown type", "x type=symlink\n", mtree.ErrUnknownType, 1},
		{"symbolic mode", "x type=file mode=rwxr-xr-x\n", mtree.ErrInvalidKeywordValue, 1},
		{"non-numeric uid", "x type=file uid=root\n", mtree.ErrInvalidKeywordValue, 1},
		{"bad octal digit", "x type=file mode=0788\n", mtree.ErrInvalidKeywordValue, 1},
		{"bad time", "x type=file time=yesterday\n", mtree.ErrInvalidKeywordValue, 1},
		{"bad type in set", "/set type=door\n", mtree.ErrUnknownType, 1},
		{"header after body", "# user: root\n\nx type=file\n# machine: box\n", mtree.ErrMalformedHeader, 4},
		{"bad header date", "# date: someday\n\nx type=file\n", mtree.ErrMalformedHeader, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			doc, err := mtree.Parse(tt.text)
			require.Error(t, err)
			assert.Nil(t, doc)
			assert.ErrorIs(t, err, tt.want)

			var perr *mtree.ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.line, perr.Line)
			assert.Contains(t, err.Error(), fmt.Sprintf("line %d", tt.line))
		})
	}
}

func TestHeaderIsolation(t *testing.T) {
	t.Parallel()

	t.Run("no header block", func(t *testing.T) {
		doc, err := mtree.Parse("etc type=dir\npasswd type=file\n")
		require.NoError(t, err)
		assert.True(t, doc.Header.IsZero())
		assert.Equal(t, []string{"/etc", "/etc/passwd"}, doc.Paths())
	})

	t.Run("ordinary comments inside the header block", func(t *testing.T) {
		doc, err := mtree.Parse("# user: bob\n# generated by hand\n# tree: /a/./b/\n\nf type=file\n")
		require.NoError(t, err)
		assert.Equal(t, "bob", doc.Header.User)
		assert.Equal(t, "/a/b", doc.Header.Tree)
		assert.Equal(t, 1, doc.Len())
	})

	t.Run("comment after header is not a header line", func(t *testing.T) {
		doc, err := mtree.Parse("# user: bob\n\n# ./etc\nf type=file\n")
		require.NoError(t, err)
		assert.Equal(t, 1, doc.Len())
	})

	t.Run("header line without a header block is a comment", func(t *testing.T) {
		doc, err := mtree.Parse("a type=file\n# user: x\nb type=file\n")
		require.NoError(t, err)
		assert.True(t, doc.Header.IsZero())
		assert.Equal(t, []string{"/a", "/b"}, doc.Paths())
	})

	t.Run("header block ended by an item line", func(t *testing.T) {
		doc, err := mtree.Parse("# user: bob\na type=file\n# machine: box\n")
		require.NoError(t, err)
		assert.Equal(t, "bob", doc.Header.User)
		assert.Empty(t, doc.Header.Machine)
		assert.Equal(t, 1, doc.Len())
	})

	t.Run("empty input", func(t *testing.T) {
		doc, err := mtree.Parse("")
		require.NoError(t, err)
		assert.Equal(t, 0, doc.Len())
		assert.True(t, doc.Header.IsZero())
	})
}

func TestDuplicatePaths(t *testing.T) {
	t.Parallel()

	text := "a type=file size=1\nb type=file\na type=file size=2\n"

	t.Run("last write wins and first position kept", func(t *testing.T) {
		doc, err := mtree.Parse(text)
		require.NoError(t, err)
		assert.Equal(t, []string{"/a", "/b"}, doc.Paths())
		a, _ := doc.Get("/a")
		assert.Equal(t, int64(2), a.Attrs.Size())
		assert.Equal(t, 3, a.Line)
		require.Len(t, doc.Warnings(), 1)
		assert.Contains(t, doc.Warnings()[0], "/a")
	})

	t.Run("strict mode rejects", func(t *testing.T) {
		doc, err := mtree.NewParser(mtree.WithStrict(true)).Parse(text)
		assert.Nil(t, doc)
		assert.ErrorIs(t, err, mtree.ErrDuplicatePath)
	})
}

func TestUnknownKeywords(t *testing.T) {
	t.Parallel()

	doc, err := mtree.Parse("/set xattr=foo\na type=file vendor=acme\nb type=file vendor=other bare\n")
	require.NoError(t, err)

	assert.Equal(t, []string{"xattr", "vendor", "bare"}, doc.UnknownKeywords())
	assert.Len(t, doc.Warnings(), 3)

	b, _ := doc.Get("/b")
	assert.Equal(t, "other", b.Attrs["vendor"])
	assert.Equal(t, true, b.Attrs["bare"])
	assert.Equal(t, "foo", b.Attrs["xattr"])
}

func TestNoneValue(t *testing.T) {
	t.Parallel()

	doc, err := mtree.Parse("/set uname=root\nf type=file uname=none size=none\n")
	require.NoError(t, err)

	f, _ := doc.Get("/f")
	assert.True(t, mtree.IsNone(f.Attrs[mtree.KeywordUname]))
	assert.False(t, f.Attrs.Has(mtree.KeywordUname))
	assert.False(t, f.Attrs.Has(mtree.KeywordSize))
}

func TestUnescapeNames(t *testing.T) {
	t.Parallel()

	text := "my\\040file type=file\n"

	raw, err := mtree.Parse(text)
	require.NoError(t, err)
	assert.Equal(t, []string{`/my\040file`}, raw.Paths())

	doc, err := mtree.NewParser(mtree.WithUnescapeNames(true)).Parse(text)
	require.NoError(t, err)
	assert.Equal(t, []string{"/my file"}, doc.Paths())
}

func TestParseConcurrent(t *testing.T) {
	t.Parallel()

	p := mtree.NewParser()
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			text := fmt.Sprintf("/set uid=%d\nd%d type=dir\nf type=file\n", i, i)
			doc, err := p.Parse(text)
			if err != nil {
				errs <- err
				return
			}
			f, ok := doc.Get(fmt.Sprintf("/d%d/f", i))
			if !ok {
				errs <- fmt.Errorf("missing /d%d/f", i)
				return
			}
			if uid, _ := f.Attrs.Int(mtree.KeywordUid); uid != int64(i) {
				errs <- fmt.Errorf("uid %d, want %d", uid, i)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}
