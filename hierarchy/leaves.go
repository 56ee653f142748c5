package hierarchy

import (
	"strings"

	"github.com/zms-erp/ledgertree/models"
)

// LabelSeparator joins descriptions along a root-to-leaf path
const LabelSeparator = " → "

// Leaf is a selectable account together with the path that leads to it
type Leaf struct {
	ID    string
	Path  []*models.Node
	Label string
}

// IDs returns the account ids along the path, skipping category headers
func (l Leaf) IDs() []string {
	ids := make([]string, 0, len(l.Path))
	for _, n := range l.Path {
		if !n.IsCategory() {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// FlattenLeaves lists every leaf account in pre-order. Category headers are
// never leaves, even when they have no children.
func FlattenLeaves(roots []*models.Node) []Leaf {
	type frame struct {
		node *models.Node
		path []*models.Node
	}

	var leaves []Leaf
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: roots[i]})
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		path := make([]*models.Node, len(top.path)+1)
		copy(path, top.path)
		path[len(top.path)] = top.node

		if top.node.IsLeaf() {
			if !top.node.IsCategory() {
				leaves = append(leaves, Leaf{ID: top.node.ID, Path: path, Label: JoinLabels(path)})
			}
			continue
		}
		for i := len(top.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: top.node.Children[i], path: path})
		}
	}
	return leaves
}

// FindPath returns the nodes from a root down to the account with the given
// id, searching depth-first. It returns nil when the id is not in the tree.
func FindPath(roots []*models.Node, id string) []*models.Node {
	if id == "" {
		return nil
	}
	for _, v := range walk(roots) {
		if v.node.ID == id && !v.node.IsCategory() {
			return v.path
		}
	}
	return nil
}

// JoinLabels joins the descriptions of a path with LabelSeparator
func JoinLabels(path []*models.Node) string {
	labels := make([]string, len(path))
	for i, n := range path {
		labels[i] = n.Description
	}
	return strings.Join(labels, LabelSeparator)
}

// CountLeaves returns the number of account nodes without children
func CountLeaves(roots []*models.Node) int {
	count := 0
	for _, v := range walk(roots) {
		if v.node.IsLeaf() && !v.node.IsCategory() {
			count++
		}
	}
	return count
}

type visit struct {
	node *models.Node
	path []*models.Node
}

// walk visits every node in pre-order without recursion
func walk(roots []*models.Node) []visit {
	var out []visit
	stack := make([]visit, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, visit{node: roots[i], path: []*models.Node{roots[i]}})
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, top)
		for i := len(top.node.Children) - 1; i >= 0; i-- {
			child := top.node.Children[i]
			path := make([]*models.Node, len(top.path)+1)
			copy(path, top.path)
			path[len(top.path)] = child
			stack = append(stack, visit{node: child, path: path})
		}
	}
	return out
}
