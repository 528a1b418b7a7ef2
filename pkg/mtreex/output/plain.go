package output

import (
	"bytes"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/jamesainslie/mtreex/pkg/mtreex/mtree"
)

// PlainFormatter writes an aligned TYPE, MODE, SIZE, PATH table without
// color. Sizes are exact byte counts, "-" when the entry has none, and
// links show their target after the path.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, d *mtree.Document) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	// Errors surface from Flush.
	row := func(cols ...string) { _, _ = io.WriteString(tw, strings.Join(cols, "\t")+"\n") }

	row("TYPE", "MODE", "SIZE", "PATH")
	for _, e := range d.Entries() {
		size := "-"
		if n, ok := e.Attrs.Int(mtree.KeywordSize); ok {
			size = strconv.FormatInt(n, 10)
		}
		path := e.Path
		if target, ok := e.Attrs.String(mtree.KeywordLink); ok && e.Attrs.Type() == mtree.TypeLink {
			path += " -> " + target
		}
		row(typeText(e.Attrs), modeText(e.Attrs), size, path)
	}
	return tw.Flush()
}

func init() {
	Register("plain", func() Formatter { return &PlainFormatter{} })
}

var _ Formatter = (*PlainFormatter)(nil)
