package hierarchy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zms-erp/ledgertree/models"
)

// FilterRoots keeps the roots whose list id or description contains query,
// ignoring case. Children are not searched; a matching root keeps its whole subtree.
func FilterRoots(roots []*models.Node, query string) []*models.Node {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return roots
	}
	var out []*models.Node
	for _, root := range roots {
		if strings.Contains(strings.ToLower(root.ListID), q) ||
			strings.Contains(strings.ToLower(root.Description), q) {
			out = append(out, root)
		}
	}
	return out
}

// NeedsHeader reports whether no node carries the category header list id
func NeedsHeader(roots []*models.Node, def models.CategoryDef) bool {
	for _, v := range walk(roots) {
		if v.node.ListID == def.HeaderListID {
			return false
		}
	}
	return true
}

// WithCategoryHeader makes sure the category header is visible. When the
// backend has no account with the header list id, a synthetic header is put
// on top and the real roots are shown beneath it.
func WithCategoryHeader(roots []*models.Node, def models.CategoryDef) []*models.Node {
	if !NeedsHeader(roots, def) {
		return roots
	}
	return WrapInHeader(def, roots)
}

// WrapInHeader nests roots under a synthetic header for def
func WrapInHeader(def models.CategoryDef, roots []*models.Node) []*models.Node {
	header := models.NewCategoryNode(def)
	header.Children = append(header.Children, roots...)
	return []*models.Node{header}
}

// NodeKey identifies a node for expand state. Headers have no id, so they
// are keyed by category.
func NodeKey(n *models.Node) string {
	if n.IsCategory() {
		return "category:" + string(n.Category)
	}
	return n.ID
}

// ExpandState tracks which nodes are open. Nodes start collapsed.
type ExpandState struct {
	expanded map[string]bool
}

// NewExpandState creates an expand state with the given keys open
func NewExpandState(keys ...string) *ExpandState {
	s := &ExpandState{expanded: make(map[string]bool)}
	for _, k := range keys {
		if k != "" {
			s.expanded[k] = true
		}
	}
	return s
}

// Toggle flips one key and returns its new state
func (s *ExpandState) Toggle(key string) bool {
	s.expanded[key] = !s.expanded[key]
	return s.expanded[key]
}

// IsExpanded reports whether key is open
func (s *ExpandState) IsExpanded(key string) bool {
	return s.expanded[key]
}

// ExpandAll opens every node that has children
func (s *ExpandState) ExpandAll(roots []*models.Node) {
	for _, v := range walk(roots) {
		if !v.node.IsLeaf() {
			s.expanded[NodeKey(v.node)] = true
		}
	}
}

// CollapseAll closes every node
func (s *ExpandState) CollapseAll() {
	s.expanded = make(map[string]bool)
}

// Keys returns the open keys in sorted order
func (s *ExpandState) Keys() []string {
	var keys []string
	for k, open := range s.expanded {
		if open {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Row is one visible line of a rendered tree
type Row struct {
	Node        *models.Node `json:"node"`
	Level       int          `json:"level"`
	HasChildren bool         `json:"hasChildren"`
	Expanded    bool         `json:"expanded"`
}

// Render lists the visible nodes in display order. Children of a node are
// shown only while it is expanded, one level deeper than their parent.
func Render(roots []*models.Node, state *ExpandState) []Row {
	if state == nil {
		state = NewExpandState()
	}
	type frame struct {
		node  *models.Node
		level int
	}
	var rows []Row
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: roots[i]})
	}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		open := state.IsExpanded(NodeKey(top.node))
		rows = append(rows, Row{
			Node:        top.node,
			Level:       top.level,
			HasChildren: !top.node.IsLeaf(),
			Expanded:    open && !top.node.IsLeaf(),
		})
		if !open {
			continue
		}
		for i := len(top.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{node: top.node.Children[i], level: top.level + 1})
		}
	}
	return rows
}

// RenderText formats rows as an indented outline
func RenderText(rows []Row) string {
	var b strings.Builder
	for _, row := range rows {
		marker := " "
		if row.HasChildren {
			marker = "+"
			if row.Expanded {
				marker = "-"
			}
		}
		fmt.Fprintf(&b, "%s%s %s %s\n", strings.Repeat("  ", row.Level), marker, row.Node.ListID, row.Node.Description)
	}
	return b.String()
}
