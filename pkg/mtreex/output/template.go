package output

import (
	"bytes"
	"fmt"
	"sync"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ncruces/go-strftime"

	"github.com/jamesainslie/mtreex/pkg/mtreex/mtree"
)

// defaultTemplate prints one "type mode path" line per entry.
const defaultTemplate = "{{range .Entries}}{{.Attrs.Type}}\t{{octal (attr . \"mode\")}}\t{{.Path}}\n{{end}}"

// TemplateFormatter renders a document through a user supplied
// text/template. The template sees Header, Entries, Warnings and Summary.
//
// Functions available to templates:
//
//	date     {{date .Header.Date "2006-01-02"}}     Go layout
//	strftime {{strftime "%Y-%m-%d" .Header.Date}}   C layout
//	mtime    {{mtime .}}                            entry time keyword
//	bytes    {{bytes .Attrs.Size}}                  IEC size
//	octal    {{octal (attr . "mode")}}              zero padded octal
//	attr     {{attr . "uid"}}                       raw value or nil
//	keyword  {{keyword . "sha256"}}                 mtree text
type TemplateFormatter struct {
	mu   sync.Mutex
	src  string
	tmpl *template.Template
}

// NewTemplateFormatter returns a formatter for src. The template is
// compiled on first use.
func NewTemplateFormatter(src string) *TemplateFormatter {
	return &TemplateFormatter{src: src}
}

// SetTemplate replaces the template source.
func (f *TemplateFormatter) SetTemplate(src string) {
	f.mu.Lock()
	f.src, f.tmpl = src, nil
	f.mu.Unlock()
}

// Format executes the template against d.
func (f *TemplateFormatter) Format(w *bytes.Buffer, d *mtree.Document) error {
	tmpl, err := f.compiled()
	if err != nil {
		return err
	}
	return tmpl.Execute(w, struct {
		Header   mtree.Header
		Entries  []mtree.Entry
		Warnings []string
		Summary  Summary
	}{d.Header, d.Entries(), d.Warnings(), Summarize(d)})
}

func (f *TemplateFormatter) compiled() (*template.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tmpl != nil {
		return f.tmpl, nil
	}
	tmpl, err := template.New("output").Funcs(funcMap).Parse(f.src)
	if err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}
	f.tmpl = tmpl
	return tmpl, nil
}

var funcMap = template.FuncMap{
	"date": func(t time.Time, layout string) string {
		if t.IsZero() {
			return ""
		}
		return t.Format(layout)
	},
	"strftime": func(layout string, t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return strftime.Format(layout, t)
	},
	"mtime":   entryTime,
	"bytes":   func(n int64) string { return humanize.IBytes(uint64(max(n, 0))) },
	"octal":   octal,
	"attr":    rawAttr,
	"keyword": func(e mtree.Entry, key string) string { return attrText(e.Attrs[key]) },
}

// entryTime returns the entry's time keyword in UTC, or the zero time.
func entryTime(e mtree.Entry) time.Time {
	t, ok := e.Attrs.Time()
	if !ok {
		return time.Time{}
	}
	return t.UTC()
}

func octal(v any) string {
	switch n := v.(type) {
	case mtree.Mode:
		return n.String()
	case int64:
		return fmt.Sprintf("%04o", n)
	case int:
		return fmt.Sprintf("%04o", n)
	}
	return ""
}

func rawAttr(e mtree.Entry, key string) any {
	if v, ok := e.Attrs[key]; ok && !mtree.IsNone(v) {
		return v
	}
	return nil
}

func init() {
	Register("template", func() Formatter { return NewTemplateFormatter(defaultTemplate) })
}

var _ Formatter = (*TemplateFormatter)(nil)
