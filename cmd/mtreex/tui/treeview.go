package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/mtreex/pkg/mtreex/tree"
)

const (
	iconExpanded  = "▼"
	iconCollapsed = "▶"
	iconMarked    = "●"
	iconUnmarked  = "○"
)

// TreeView is the scrolling, collapsible list of manifest nodes. Marks are
// stored on the nodes, so they survive collapsing a directory.
type TreeView struct {
	root   *tree.Node
	flat   []*tree.Node
	cursor int
	offset int
}

// NewTreeView returns a view of root with root's expansion state.
func NewTreeView(root *tree.Node) *TreeView {
	tv := &TreeView{root: root}
	tv.refresh()
	return tv
}

// refresh reflattens the visible nodes and clamps the cursor.
func (tv *TreeView) refresh() {
	tv.flat = nil
	if tv.root != nil {
		tv.flat = tv.root.Flatten()
	}
	tv.move(0)
}

// move shifts the cursor by delta rows, staying within the list.
func (tv *TreeView) move(delta int) {
	tv.cursor = max(min(tv.cursor+delta, len(tv.flat)-1), 0)
}

func (tv *TreeView) MoveUp()        { tv.move(-1) }
func (tv *TreeView) MoveDown()      { tv.move(1) }
func (tv *TreeView) PageUp(n int)   { tv.move(-n) }
func (tv *TreeView) PageDown(n int) { tv.move(n) }

// moveTo puts the cursor on target if it is visible.
func (tv *TreeView) moveTo(target *tree.Node) {
	for i, n := range tv.flat {
		if n == target {
			tv.cursor = i
			return
		}
	}
}

// Selected returns the node under the cursor, or nil for an empty view.
func (tv *TreeView) Selected() *tree.Node {
	if tv.cursor < 0 || tv.cursor >= len(tv.flat) {
		return nil
	}
	return tv.flat[tv.cursor]
}

// Toggle opens or closes the directory under the cursor.
func (tv *TreeView) Toggle() {
	if n := tv.Selected(); n != nil && n.IsDir() {
		n.Toggle()
		tv.refresh()
	}
}

// Collapse closes the directory under the cursor. On a file or a closed
// directory it jumps to the parent instead.
func (tv *TreeView) Collapse() {
	n := tv.Selected()
	switch {
	case n == nil:
	case n.IsDir() && n.Expanded && n != tv.root:
		n.Expanded = false
		tv.refresh()
	case n.Parent != nil:
		tv.moveTo(n.Parent)
	}
}

// ExpandAll opens every directory, keeping the cursor on the same node.
func (tv *TreeView) ExpandAll() {
	if tv.root == nil {
		return
	}
	keep := tv.Selected()
	tv.root.ExpandAll()
	tv.refresh()
	tv.moveTo(keep)
}

// CollapseAll closes everything below the root and returns to the top.
func (tv *TreeView) CollapseAll() {
	if tv.root == nil {
		return
	}
	tv.root.CollapseAll()
	tv.root.Expanded = true
	tv.cursor, tv.offset = 0, 0
	tv.refresh()
}

// ToggleMark flips the mark on the node under the cursor.
func (tv *TreeView) ToggleMark() {
	if n := tv.Selected(); n != nil {
		n.Selected = !n.Selected
	}
}

// MarkedPaths returns marked paths in tree order, hidden ones included.
func (tv *TreeView) MarkedPaths() []string {
	if tv.root == nil {
		return nil
	}
	return tv.root.SelectedPaths()
}

func (tv *TreeView) MarkedCount() int { return len(tv.MarkedPaths()) }

// ClearMarks unmarks every node.
func (tv *TreeView) ClearMarks() {
	if tv.root == nil {
		return
	}
	tv.root.Walk(func(n *tree.Node) bool {
		n.Selected = false
		return true
	})
}

// View renders exactly height lines of at most width cells, scrolled so
// the cursor is visible.
func (tv *TreeView) View(width, height int) string {
	if len(tv.flat) == 0 {
		return center(mutedTextStyle.Render("No entries to display"), width) + "\n"
	}

	rows := max(height, 1)
	tv.scrollTo(rows)

	lines := make([]string, rows)
	for i := range lines {
		if idx := tv.offset + i; idx < len(tv.flat) {
			lines[i] = tv.renderRow(tv.flat[idx], width, idx == tv.cursor)
		}
	}
	return strings.Join(lines, "\n") + "\n"
}

// scrollTo moves the window of rows lines so it contains the cursor.
func (tv *TreeView) scrollTo(rows int) {
	switch {
	case tv.cursor < tv.offset:
		tv.offset = tv.cursor
	case tv.cursor >= tv.offset+rows:
		tv.offset = tv.cursor - rows + 1
	}
	tv.offset = max(tv.offset, 0)
}

// nodeSummary is the right-hand text of a row: file count and total size
// for directories, size or type for the rest.
func nodeSummary(node *tree.Node) string {
	switch {
	case node.IsDir() && node.FileCount > 0:
		return fmt.Sprintf("(%d files, %s)", node.FileCount, humanize.IBytes(uint64(node.TotalSize)))
	case node.IsDir():
		return ""
	case node.Attrs.Has("size"):
		return humanize.IBytes(uint64(node.Size))
	}
	return string(node.Type)
}

// renderRow draws "indent icon mark name ... summary" padded to width.
func (tv *TreeView) renderRow(node *tree.Node, width int, cursor bool) string {
	icon := " "
	if node.IsDir() {
		icon = iconCollapsed
		if node.Expanded {
			icon = iconExpanded
		}
	}
	mark, markStyle := iconUnmarked, unmarkedStyle
	if node.Selected {
		mark, markStyle = iconMarked, markedStyle
	}
	prefix := strings.Repeat("  ", node.Depth()) + icon + " "
	summary := nodeSummary(node)
	gap := strings.Repeat(" ", max(width-lipgloss.Width(prefix+mark+" "+node.Name)-lipgloss.Width(summary)-1, 1))

	if cursor {
		return cursorRowStyle.Width(width).Render(prefix + mark + " " + node.Name + gap + summary)
	}

	name := node.Name
	if node.Implied {
		name = mutedTextStyle.Render(name)
	}
	return rowStyle.Width(width).Render(prefix + markStyle.Render(mark) + " " + name + gap + summaryStyle.Render(summary))
}
