package output

import (
	"bytes"
	"encoding/json"

	"github.com/jamesainslie/mtreex/pkg/mtreex/mtree"
)

// documentView is the structure shared by the json, yaml and toml formatters.
type documentView struct {
	Header   *headerView `json:"header,omitempty" yaml:"header,omitempty" toml:"header,omitempty"`
	Entries  []any       `json:"entries" yaml:"entries" toml:"entries"`
	Summary  Summary     `json:"summary" yaml:"summary" toml:"summary"`
	Warnings []string    `json:"warnings,omitempty" yaml:"warnings,omitempty" toml:"warnings,omitempty"`
}

// headerView is the header with the date as RFC 3339 text.
type headerView struct {
	User    string `json:"user,omitempty" yaml:"user,omitempty" toml:"user,omitempty"`
	Machine string `json:"machine,omitempty" yaml:"machine,omitempty" toml:"machine,omitempty"`
	Tree    string `json:"tree,omitempty" yaml:"tree,omitempty" toml:"tree,omitempty"`
	Date    string `json:"date,omitempty" yaml:"date,omitempty" toml:"date,omitempty"`
}

// deepEntry is one entry in the deep layout.
type deepEntry struct {
	Path       string         `json:"path" yaml:"path" toml:"path"`
	Attributes map[string]any `json:"attributes" yaml:"attributes" toml:"attributes"`
}

func buildHeaderView(h mtree.Header) *headerView {
	if h.IsZero() {
		return nil
	}
	v := &headerView{}
	for _, kv := range h.Fields() {
		switch kv[0] {
		case "user":
			v.User = kv[1]
		case "machine":
			v.Machine = kv[1]
		case "tree":
			v.Tree = kv[1]
		case "date":
			v.Date = kv[1]
		}
	}
	return v
}

// entryView converts an entry for the given layout. In the shallow layout
// the path sits next to the attributes; a keyword literally named "path"
// would collide and is moved to "keyword:path".
func entryView(e mtree.Entry, layout Layout) any {
	attrs := make(map[string]any, len(e.Attrs)+1)
	for key, v := range e.Attrs {
		if sv, ok := structuredValue(v); ok {
			attrs[key] = sv
		}
	}

	if layout == LayoutDeep {
		return deepEntry{Path: e.Path, Attributes: attrs}
	}

	if v, ok := attrs["path"]; ok {
		attrs["keyword:path"] = v
	}
	attrs["path"] = e.Path
	return attrs
}

func buildDocumentView(d *mtree.Document, layout Layout) documentView {
	entries := make([]any, 0, d.Len())
	for _, e := range d.Entries() {
		entries = append(entries, entryView(e, layout))
	}
	return documentView{
		Header:   buildHeaderView(d.Header),
		Entries:  entries,
		Summary:  Summarize(d),
		Warnings: d.Warnings(),
	}
}

// JSONFormatter formats output as a single indented JSON object.
// It produces a complete JSON document with header, entries, and summary sections.
type JSONFormatter struct {
	layout Layout
}

// SetLayout implements LayoutSetter.
func (f *JSONFormatter) SetLayout(l Layout) {
	f.layout = l
}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, d *mtree.Document) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(buildDocumentView(d, f.layout))
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{layout: LayoutShallow}
	})
}

// Ensure JSONFormatter implements Formatter.
var _ Formatter = (*JSONFormatter)(nil)

// JSONLFormatter formats output as newline-delimited JSON (one object per line).
// Each entry is written as a compact JSON object on its own line.
// This format is suitable for streaming processing with tools like jq.
type JSONLFormatter struct {
	layout Layout
}

// SetLayout implements LayoutSetter.
func (f *JSONLFormatter) SetLayout(l Layout) {
	f.layout = l
}

// Format writes the formatted output to the buffer.
func (f *JSONLFormatter) Format(w *bytes.Buffer, d *mtree.Document) error {
	for _, e := range d.Entries() {
		data, err := json.Marshal(entryView(e, f.layout))
		if err != nil {
			return err
		}
		w.Write(data)
		w.WriteByte('\n')
	}
	return nil
}

func init() {
	Register("jsonl", func() Formatter {
		return &JSONLFormatter{layout: LayoutShallow}
	})
}

// Ensure JSONLFormatter implements Formatter.
var _ Formatter = (*JSONLFormatter)(nil)
