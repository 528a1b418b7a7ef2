package tree

import (
	"path"

	"github.com/jamesainslie/mtreex/pkg/mtreex/mtree"
)

// Build arranges the document's entries under a root node for "/".
// Children keep manifest order. Ancestors that the manifest never names
// are created as implied directories. The root starts expanded.
func Build(doc *mtree.Document) *Node {
	root := &Node{
		Path:     "/",
		Name:     "/",
		Type:     mtree.TypeDir,
		Implied:  true,
		Expanded: true,
	}

	nodes := map[string]*Node{"/": root}

	for _, e := range doc.Entries() {
		n, ok := nodes[e.Path]
		if !ok {
			parent := ensureAncestors(e.Path, nodes)
			n = &Node{Path: e.Path, Name: e.Name()}
			parent.AddChild(n)
			nodes[e.Path] = n
		}
		n.Implied = false
		n.Type = e.Attrs.Type()
		n.Attrs = e.Attrs
		n.Size = e.Attrs.Size()
	}

	aggregateSizes(root)
	return root
}

// ensureAncestors creates every missing directory between the root and
// p's parent and returns the parent node.
func ensureAncestors(p string, nodes map[string]*Node) *Node {
	dir := path.Dir(p)
	if n, ok := nodes[dir]; ok {
		return n
	}

	parent := ensureAncestors(dir, nodes)
	n := &Node{
		Path:    dir,
		Name:    path.Base(dir),
		Type:    mtree.TypeDir,
		Implied: true,
	}
	parent.AddChild(n)
	nodes[dir] = n
	return n
}

// aggregateSizes fills TotalSize and FileCount for every directory.
func aggregateSizes(node *Node) (totalSize int64, totalCount int) {
	if !node.IsDir() {
		return node.Size, 1
	}

	for _, child := range node.Children {
		size, count := aggregateSizes(child)
		totalSize += size
		totalCount += count
	}

	node.TotalSize = totalSize
	node.FileCount = totalCount

	return totalSize, totalCount
}
