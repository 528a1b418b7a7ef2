package output

import (
	"bytes"

	"github.com/jamesainslie/mtreex/pkg/mtreex/mtree"
)

// PathListFormatter writes only entry paths, each followed by Sep. It backs
// the "paths" format and the "null" format for xargs -0. An empty Sep
// means newline.
type PathListFormatter struct {
	Sep string
}

// Format writes the formatted output to the buffer.
func (f *PathListFormatter) Format(w *bytes.Buffer, d *mtree.Document) error {
	sep := f.Sep
	if sep == "" {
		sep = "\n"
	}
	for _, p := range d.Paths() {
		w.WriteString(p)
		w.WriteString(sep)
	}
	return nil
}

func init() {
	Register("paths", func() Formatter { return &PathListFormatter{} })
	Register("null", func() Formatter { return &PathListFormatter{Sep: "\x00"} })
}

var _ Formatter = (*PathListFormatter)(nil)
