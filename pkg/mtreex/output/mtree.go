package output

import (
	"bytes"
	"fmt"
	"path"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/jamesainslie/mtreex/pkg/mtreex/mtree"
)

// defaultKeywords are the keywords the mtree formatter hoists into /set
// lines when most entries share a value.
var defaultKeywords = []string{
	mtree.KeywordType,
	mtree.KeywordUid,
	mtree.KeywordGid,
	mtree.KeywordUname,
	mtree.KeywordGname,
	mtree.KeywordMode,
	mtree.KeywordNlink,
	mtree.KeywordFlags,
}

// MtreeFormatter writes the document back out as mtree text.
//
// Entries are emitted in document order with directories nested and ".."
// lines climbing back out; keyword values most entries share are hoisted
// into /set and withdrawn with /unset before any entry that lacks them.
// Parsing the output yields the same paths in the same order with the same
// attributes. Blanks and control bytes in names and values are written as
// \ooo escapes, which the reader must unescape to get them back.
type MtreeFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *MtreeFormatter) Format(w *bytes.Buffer, d *mtree.Document) error {
	writeMtreeHeader(w, d.Header)

	defaults := commonValues(d)
	active := mtree.Attributes{}
	if len(defaults) > 0 {
		writeSet(w, "", defaults, sortedKeys(defaults))
		active = defaults.Clone()
	}

	current := "/"
	for _, e := range d.Entries() {
		parent := path.Dir(e.Path)
		for !isWithin(parent, current) {
			current = path.Dir(current)
			fmt.Fprintf(w, "%s..\n", indentFor(current))
		}
		indent := indentFor(current)

		var unset []string
		for _, key := range sortedKeys(active) {
			if _, ok := e.Attrs[key]; !ok {
				unset = append(unset, key)
				delete(active, key)
			}
		}
		if len(unset) > 0 {
			fmt.Fprintf(w, "%s/unset %s\n", indent, strings.Join(unset, " "))
		}

		var restore []string
		for _, key := range sortedKeys(defaults) {
			if _, ok := active[key]; ok {
				continue
			}
			if v, ok := e.Attrs[key]; ok && reflect.DeepEqual(v, defaults[key]) {
				restore = append(restore, key)
				active[key] = defaults[key]
			}
		}
		if len(restore) > 0 {
			writeSet(w, indent, defaults, restore)
		}

		var kws []string
		for _, key := range e.Attrs.Keys() {
			v := e.Attrs[key]
			if av, ok := active[key]; ok && reflect.DeepEqual(av, v) {
				continue
			}
			kw, ok := mtreeKeyword(key, v)
			if !ok {
				logger.Debug("attribute has no text form", "path", e.Path, "keyword", key)
				continue
			}
			kws = append(kws, kw)
		}

		name := entryName(e.Path, current, len(kws) == 0)
		if e.Attrs.Type() == mtree.TypeDir {
			fmt.Fprintf(w, "\n%s# %s\n", indent, escapeToken(e.Path))
		}
		w.WriteString(indent)
		w.WriteString(name)
		for _, kw := range kws {
			w.WriteByte(' ')
			w.WriteString(kw)
		}
		w.WriteByte('\n')

		if e.Attrs.Type() == mtree.TypeDir {
			current = e.Path
		}
	}
	return nil
}

// writeMtreeHeader writes the header comment block and the blank line that
// ends it. Nothing is written for an empty header.
func writeMtreeHeader(w *bytes.Buffer, h mtree.Header) {
	if h.IsZero() {
		return
	}
	if h.User != "" {
		fmt.Fprintf(w, "#\t   user: %s\n", h.User)
	}
	if h.Machine != "" {
		fmt.Fprintf(w, "#\tmachine: %s\n", h.Machine)
	}
	if h.Tree != "" {
		fmt.Fprintf(w, "#\t   tree: %s\n", h.Tree)
	}
	if !h.Date.IsZero() {
		fmt.Fprintf(w, "#\t   date: %s\n", h.Date.UTC().Format(time.ANSIC))
	}
	w.WriteByte('\n')
}

func writeSet(w *bytes.Buffer, indent string, attrs mtree.Attributes, keys []string) {
	var kws []string
	for _, key := range keys {
		if kw, ok := mtreeKeyword(key, attrs[key]); ok {
			kws = append(kws, kw)
		}
	}
	fmt.Fprintf(w, "%s/set %s\n", indent, strings.Join(kws, " "))
}

// mtreeKeyword renders one keyword so that parsing it gives back v:
// false booleans and None are written out explicitly and strings are escaped.
func mtreeKeyword(key string, v any) (string, bool) {
	switch val := v.(type) {
	case bool:
		if val {
			return key, true
		}
		return key + "=false", true
	case string:
		return key + "=" + escapeToken(val), true
	}
	if mtree.IsNone(v) {
		return key + "=none", true
	}
	return mtree.FormatKeyword(key, v)
}

// entryName returns the name to write for p relative to dir. The root is
// written as "." unless the line would carry no keywords, where "." alone
// would read as a pop. A leading '#' would read as a comment and gets a
// "./" prefix.
func entryName(p, dir string, bare bool) string {
	if p == dir {
		if bare {
			return "/"
		}
		return "."
	}
	rel := strings.TrimPrefix(p, dir)
	rel = strings.TrimPrefix(rel, "/")
	if strings.HasPrefix(rel, "#") {
		rel = "./" + rel
	}
	return escapeToken(rel)
}

// escapeToken escapes only the bytes that would split or end a token.
// Anything else is written as is, so values read without unescaping come
// back unchanged.
func escapeToken(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] <= ' ' || s[i] == 0x7f {
			return mtree.EscapeName(s)
		}
	}
	return s
}

// isWithin reports whether p is dir or below it.
func isWithin(p, dir string) bool {
	if dir == "/" || p == dir {
		return true
	}
	return strings.HasPrefix(p, dir+"/")
}

// indentFor returns four spaces per directory level of dir.
func indentFor(dir string) string {
	if dir == "/" {
		return ""
	}
	return strings.Repeat("    ", strings.Count(dir, "/"))
}

// commonValues picks, for each default keyword, the value shared by the
// most entries, when at least two entries share it.
func commonValues(d *mtree.Document) mtree.Attributes {
	out := mtree.Attributes{}
	for _, key := range defaultKeywords {
		counts := map[string]int{}
		values := map[string]any{}
		for _, e := range d.Entries() {
			v, ok := e.Attrs[key]
			if !ok {
				continue
			}
			kw, ok := mtreeKeyword(key, v)
			if !ok {
				continue
			}
			counts[kw]++
			values[kw] = v
		}

		best, bestCount := "", 1
		for kw, n := range counts {
			if n > bestCount || (n == bestCount && n > 1 && kw < best) {
				best, bestCount = kw, n
			}
		}
		if best != "" {
			out[key] = values[best]
		}
	}
	return out
}

func sortedKeys(a mtree.Attributes) []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	Register("mtree", func() Formatter {
		return &MtreeFormatter{}
	})
}

// Ensure MtreeFormatter implements Formatter.
var _ Formatter = (*MtreeFormatter)(nil)
