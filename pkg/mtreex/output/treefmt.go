package output

import (
	"bytes"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/mtreex/pkg/mtreex/mtree"
	"github.com/jamesainslie/mtreex/pkg/mtreex/tree"
)

// TreeFormatter draws the document as an indented directory tree.
// Implied directories (never named by an entry) are shown in muted style.
type TreeFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *TreeFormatter) Format(w *bytes.Buffer, d *mtree.Document) error {
	root := tree.Build(d)

	w.WriteString(theme.paths[mtree.TypeDir].Render(root.Path))
	w.WriteByte('\n')
	f.writeChildren(w, root, "")
	return nil
}

func (f *TreeFormatter) writeChildren(w *bytes.Buffer, n *tree.Node, prefix string) {
	for i, child := range n.Children {
		last := i == len(n.Children)-1

		branch, indent := "├── ", "│   "
		if last {
			branch, indent = "└── ", "    "
		}

		w.WriteString(theme.muted.Render(prefix + branch))
		w.WriteString(f.label(child))
		w.WriteByte('\n')

		if len(child.Children) > 0 {
			f.writeChildren(w, child, prefix+indent)
		}
	}
}

func (f *TreeFormatter) label(n *tree.Node) string {
	switch {
	case n.Implied:
		return theme.muted.Render(n.Name + "/")
	case n.IsDir():
		return theme.paths[mtree.TypeDir].Render(n.Name+"/") + theme.muted.Render(" ("+humanize.IBytes(uint64(n.TotalSize))+")")
	case n.Type == mtree.TypeLink:
		target, _ := n.Attrs.String(mtree.KeywordLink)
		return theme.paths[mtree.TypeLink].Render(n.Name) + theme.muted.Render(" -> "+target)
	}

	var extra []string
	if m, ok := n.Attrs.Mode(); ok {
		extra = append(extra, m.String())
	}
	if n.Attrs.Has(mtree.KeywordSize) {
		extra = append(extra, humanize.IBytes(uint64(n.Size)))
	}
	if len(extra) == 0 {
		return theme.value.Render(n.Name)
	}
	return theme.value.Render(n.Name) + theme.muted.Render(" ["+strings.Join(extra, ", ")+"]")
}

func init() {
	Register("tree", func() Formatter {
		return &TreeFormatter{}
	})
}

// Ensure TreeFormatter implements Formatter.
var _ Formatter = (*TreeFormatter)(nil)
