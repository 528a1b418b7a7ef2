// Package tree arranges the flat, ordered entries of a manifest into a
// directory hierarchy for display.
package tree

import "github.com/jamesainslie/mtreex/pkg/mtreex/mtree"

// Node is one path of the hierarchy.
type Node struct {
	// Identity
	Path string `json:"path"`
	Name string `json:"name"`

	Type  mtree.EntryType  `json:"type,omitempty"`
	Attrs mtree.Attributes `json:"-"`

	// Implied is set for directories that no manifest entry names but that
	// are needed to hold one that does.
	Implied bool `json:"implied,omitempty"`

	// Size is the entry's own size keyword.
	Size int64 `json:"size,omitempty"`

	// Aggregates over every non-directory entry underneath.
	TotalSize int64 `json:"total_size,omitempty"`
	FileCount int   `json:"file_count,omitempty"`

	// Tree structure
	Children []*Node `json:"children,omitempty"`
	Parent   *Node   `json:"-"`

	// UI state
	Expanded bool `json:"expanded,omitempty"`
	Selected bool `json:"selected,omitempty"`
}

// IsDir reports whether the node is a directory, named or implied.
func (n *Node) IsDir() bool {
	return n.Type == mtree.TypeDir || n.Implied || len(n.Children) > 0
}

// AddChild adds a child node and sets this node as the child's parent.
func (n *Node) AddChild(child *Node) {
	child.Parent = n
	n.Children = append(n.Children, child)
}

// IsLeaf returns true if the node has no children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Depth returns the depth of this node from the root (root = 0).
func (n *Node) Depth() int {
	depth := 0
	for p := n.Parent; p != nil; p = p.Parent {
		depth++
	}
	return depth
}

// Flatten returns a slice of all visible nodes in display order.
// Collapsed directories hide their children.
func (n *Node) Flatten() []*Node {
	result := []*Node{n}
	if n.Expanded {
		for _, child := range n.Children {
			result = append(result, child.Flatten()...)
		}
	}
	return result
}

// Walk calls fn for n and every descendant in depth-first order. If fn
// returns false the node's children are skipped.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, child := range n.Children {
		child.Walk(fn)
	}
}

// Find returns the descendant (or n itself) with the given path.
func (n *Node) Find(path string) *Node {
	var found *Node
	n.Walk(func(c *Node) bool {
		if found != nil {
			return false
		}
		if c.Path == path {
			found = c
			return false
		}
		return true
	})
	return found
}

// Toggle expands or collapses a directory node.
// Has no effect on other nodes.
func (n *Node) Toggle() {
	if !n.IsDir() {
		return
	}
	n.Expanded = !n.Expanded
}

// ExpandAll expands this node and all descendant directories.
func (n *Node) ExpandAll() {
	n.Walk(func(c *Node) bool {
		if c.IsDir() {
			c.Expanded = true
		}
		return true
	})
}

// CollapseAll collapses this node and all descendant directories.
func (n *Node) CollapseAll() {
	n.Walk(func(c *Node) bool {
		c.Expanded = false
		return true
	})
}

// SelectedPaths returns the paths of every selected node under n, in tree order.
func (n *Node) SelectedPaths() []string {
	var paths []string
	n.Walk(func(c *Node) bool {
		if c.Selected {
			paths = append(paths, c.Path)
		}
		return true
	})
	return paths
}
