package output

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jamesainslie/mtreex/pkg/mtreex/mtree"
)

// tableColumns heads the tsv, csv and markdown tables.
var tableColumns = []string{"TYPE", "MODE", "UID", "GID", "SIZE", "PATH"}

// tableRows returns one cell slice per entry, "-" standing in for a
// missing uid or gid.
func tableRows(d *mtree.Document) [][]string {
	idText := func(a mtree.Attributes, key string) string {
		n, ok := a.Int(key)
		if !ok {
			return "-"
		}
		return strconv.FormatInt(n, 10)
	}

	rows := make([][]string, 0, d.Len())
	for _, e := range d.Entries() {
		rows = append(rows, []string{
			typeText(e.Attrs),
			modeText(e.Attrs),
			idText(e.Attrs, mtree.KeywordUid),
			idText(e.Attrs, mtree.KeywordGid),
			strconv.FormatInt(e.Attrs.Size(), 10),
			e.Path,
		})
	}
	return rows
}

// TSVFormatter writes a header line and one tab separated line per entry.
type TSVFormatter struct{}

func (f *TSVFormatter) Format(w *bytes.Buffer, d *mtree.Document) error {
	for _, row := range append([][]string{tableColumns}, tableRows(d)...) {
		w.WriteString(strings.Join(row, "\t"))
		w.WriteByte('\n')
	}
	return nil
}

// CSVFormatter writes RFC 4180 records with the same columns as TSV.
type CSVFormatter struct{}

func (f *CSVFormatter) Format(w *bytes.Buffer, d *mtree.Document) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tableColumns); err != nil {
		return err
	}
	return cw.WriteAll(tableRows(d))
}

// MarkdownFormatter writes a GitHub flavored table. With Render set the
// table is rendered for the terminal by glamour, wrapped at Width columns
// when Width is positive.
type MarkdownFormatter struct {
	Render bool
	Width  int
}

func (f *MarkdownFormatter) Format(w *bytes.Buffer, d *mtree.Document) error {
	if !f.Render {
		writeMarkdownTable(w, d)
		return nil
	}

	var md bytes.Buffer
	if d.Header.Tree != "" {
		md.WriteString("# " + d.Header.Tree + "\n\n")
	}
	writeMarkdownTable(&md, d)

	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if f.Width > 0 {
		opts = append(opts, glamour.WithWordWrap(f.Width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return err
	}
	out, err := r.RenderBytes(md.Bytes())
	if err != nil {
		return err
	}
	w.Write(out)
	return nil
}

func writeMarkdownTable(w *bytes.Buffer, d *mtree.Document) {
	line := func(cells []string) {
		w.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}

	line(tableColumns)
	rule := make([]string, len(tableColumns))
	for i, c := range tableColumns {
		rule[i] = strings.Repeat("-", len(c))
	}
	w.WriteString("|-" + strings.Join(rule, "-|-") + "-|\n")

	for _, row := range tableRows(d) {
		for i, cell := range row {
			row[i] = strings.ReplaceAll(cell, "|", `\|`)
		}
		line(row)
	}
}

func init() {
	Register("tsv", func() Formatter { return &TSVFormatter{} })
	Register("csv", func() Formatter { return &CSVFormatter{} })
	Register("markdown", func() Formatter { return &MarkdownFormatter{} })
	Register("markdown-term", func() Formatter { return &MarkdownFormatter{Render: true} })
}

var (
	_ Formatter = (*TSVFormatter)(nil)
	_ Formatter = (*CSVFormatter)(nil)
	_ Formatter = (*MarkdownFormatter)(nil)
)
