// Package selector implements the ledger account picker: a type-ahead search
// over leaf paths and a level-by-level drill-down over the same trees. Only a
// leaf account can ever become the selected value.
package selector

import (
	"errors"
	"strings"

	"github.com/zms-erp/ledgertree/hierarchy"
	"github.com/zms-erp/ledgertree/models"
)

// MaxResults caps the number of search matches
const MaxResults = 10

var (
	// ErrNotSelectable is returned when an id is not a leaf account
	ErrNotSelectable = errors.New("account is not a selectable leaf")
	// ErrOptionNotFound is returned when a drill-down choice is not offered at that level
	ErrOptionNotFound = errors.New("option not found at level")
	// ErrInvalidLevel is returned for a level below zero or beyond the current path
	ErrInvalidLevel = errors.New("invalid level")
)

// Selector holds the state of one account picker
type Selector struct {
	roots  []*models.Node
	leaves []hierarchy.Leaf
	path   []*models.Node
	value  string
}

// New creates a selector over roots. When initialAccountID is found in the
// trees, its path is restored; the value is kept only if it is a leaf.
func New(roots []*models.Node, initialAccountID string) *Selector {
	s := &Selector{
		roots:  roots,
		leaves: hierarchy.FlattenLeaves(roots),
	}
	if path := hierarchy.FindPath(roots, initialAccountID); path != nil {
		s.path = path
		if last := path[len(path)-1]; last.IsLeaf() {
			s.value = last.ID
		}
	}
	return s
}

// Search returns the leaves whose joined label contains query, ignoring case
func (s *Selector) Search(query string) []hierarchy.Leaf {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []hierarchy.Leaf
	for _, leaf := range s.leaves {
		if strings.Contains(strings.ToLower(leaf.Label), q) {
			out = append(out, leaf)
			if len(out) == MaxResults {
				break
			}
		}
	}
	return out
}

// Choose commits a search result
func (s *Selector) Choose(leafID string) error {
	for _, leaf := range s.leaves {
		if leaf.ID == leafID {
			s.path = append([]*models.Node(nil), leaf.Path...)
			s.value = leaf.ID
			return nil
		}
	}
	return ErrNotSelectable
}

// Options lists the choices offered at level. Level 0 holds the roots; level
// n holds the children of the node selected at level n-1.
func (s *Selector) Options(level int) []*models.Node {
	switch {
	case level == 0:
		return s.roots
	case level > 0 && level <= len(s.path):
		return s.path[level-1].Children
	default:
		return nil
	}
}

// Select picks the option with the given key at level. Deeper selections
// are dropped. The value is committed only when the picked node is a leaf
// account, and cleared otherwise.
func (s *Selector) Select(level int, key string) error {
	if level < 0 || level > len(s.path) {
		return ErrInvalidLevel
	}
	var picked *models.Node
	for _, option := range s.Options(level) {
		if hierarchy.NodeKey(option) == key {
			picked = option
			break
		}
	}
	if picked == nil {
		return ErrOptionNotFound
	}

	s.path = append(s.path[:level:level], picked)
	if picked.IsLeaf() && !picked.IsCategory() {
		s.value = picked.ID
	} else {
		s.value = ""
	}
	return nil
}

// Reset clears the path and the value
func (s *Selector) Reset() {
	s.path = nil
	s.value = ""
}

// Value returns the committed leaf id, or "" when nothing is committed
func (s *Selector) Value() string {
	return s.value
}

// Path returns the selected nodes from the root down
func (s *Selector) Path() []*models.Node {
	return append([]*models.Node(nil), s.path...)
}

// Label returns the selected path joined for display
func (s *Selector) Label() string {
	return hierarchy.JoinLabels(s.path)
}
