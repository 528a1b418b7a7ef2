package tui

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/mtreex/pkg/mtreex/mtree"
	"github.com/jamesainslie/mtreex/pkg/mtreex/tree"
)

// detailLines returns the attribute rows shown for node.
func detailLines(node *tree.Node) [][2]string {
	if node == nil {
		return nil
	}

	rows := [][2]string{{"path", node.Path}}
	if node.Implied {
		rows = append(rows, [2]string{"", "implied directory, not listed"})
	}

	for _, key := range node.Attrs.Keys() {
		v := node.Attrs[key]
		var text string
		switch val := v.(type) {
		case time.Time:
			text = val.Local().Format("2006-01-02 15:04:05.000000000 MST")
		case bool:
			text = "yes"
			if !val {
				text = "no"
			}
		default:
			if mtree.IsNone(v) {
				text = "none"
			} else {
				text, _ = mtree.FormatValue(v)
			}
		}
		if key == mtree.KeywordSize {
			text += " (" + humanize.IBytes(uint64(node.Size)) + ")"
		}
		rows = append(rows, [2]string{key, text})
	}

	if node.IsDir() && node.FileCount > 0 {
		rows = append(rows,
			[2]string{"files", humanize.Comma(int64(node.FileCount))},
			[2]string{"total", humanize.IBytes(uint64(node.TotalSize))},
		)
	}
	return rows
}

// renderDetail renders the attribute pane for the highlighted node.
func renderDetail(node *tree.Node, width, height int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Details"))
	b.WriteString("\n")

	rows := detailLines(node)
	if len(rows) == 0 {
		b.WriteString(mutedTextStyle.Render("nothing selected"))
		return paneStyle.Width(width).Height(height).Render(b.String())
	}

	valueWidth := max(width-detailKeyStyle.GetWidth()-4, 8)
	for i, row := range rows {
		if i >= height-2 {
			b.WriteString(mutedTextStyle.Render("..."))
			break
		}
		b.WriteString(detailKeyStyle.Render(row[0]))
		b.WriteString(detailValueStyle.Render(truncatePath(row[1], valueWidth)))
		b.WriteString("\n")
	}
	return paneStyle.Width(width).Height(height).Render(b.String())
}
