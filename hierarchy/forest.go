package hierarchy

import (
	"errors"

	"github.com/zms-erp/ledgertree/models"
)

var (
	// ErrNodeNotFound is returned when an id is not part of the forest
	ErrNodeNotFound = errors.New("node not found")
	// ErrDuplicateID is returned when an added account reuses an existing id
	ErrDuplicateID = errors.New("duplicate node id")
	// ErrInvalidNode is returned when an added account has no id
	ErrInvalidNode = errors.New("node has no id")
)

// rootKey files root ids in the children index. No persisted account has an empty id.
const rootKey = ""

// Forest is an immutable set of account trees.
type Forest struct {
	nodes    map[string]models.Account
	children map[string][]string
	orphans  []models.Account
}

// NewForest builds a forest from a flat list. Records whose parent id is
// unknown, and everything below them, are returned as orphans in input order.
// Repeated ids after the first occurrence are reported as orphans too.
func NewForest(flat []models.Account) (*Forest, []models.Account) {
	f := &Forest{
		nodes:    make(map[string]models.Account, len(flat)),
		children: make(map[string][]string),
	}

	// First pass: index every record by id
	seen := make(map[string]bool, len(flat))
	var candidates []models.Account
	var orphans []models.Account
	for _, record := range flat {
		if record.ID == "" || seen[record.ID] {
			orphans = append(orphans, record)
			continue
		}
		seen[record.ID] = true
		candidates = append(candidates, record.Normalized())
	}

	// Second pass: attach each record to its parent, keeping input order
	byParent := make(map[string][]string)
	known := make(map[string]models.Account, len(candidates))
	for _, record := range candidates {
		known[record.ID] = record
	}
	for _, record := range candidates {
		parent := record.ParentID()
		if parent != rootKey {
			if _, ok := known[parent]; !ok {
				continue
			}
		}
		byParent[parent] = append(byParent[parent], record.ID)
	}

	// Keep only what hangs off a root; this also drops cycles
	roots := byParent[rootKey]
	if len(roots) > 0 {
		f.children[rootKey] = roots
	}
	queue := append([]string(nil), roots...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		f.nodes[id] = known[id]
		if kids := byParent[id]; len(kids) > 0 {
			f.children[id] = kids
			queue = append(queue, kids...)
		}
	}

	for _, record := range candidates {
		if _, ok := f.nodes[record.ID]; !ok {
			orphans = append(orphans, record)
		}
	}
	f.orphans = orphans
	return f, orphans
}

// BuildHierarchy converts a flat list into nested roots. Orphans are returned
// separately instead of being dropped silently.
func BuildHierarchy(flat []models.Account) ([]*models.Node, []models.Account) {
	f, orphans := NewForest(flat)
	return f.Tree(), orphans
}

// Len returns the number of accounts in the forest
func (f *Forest) Len() int {
	return len(f.nodes)
}

// Get returns the account with the given id
func (f *Forest) Get(id string) (models.Account, bool) {
	a, ok := f.nodes[id]
	return a, ok
}

// Has reports whether id is part of the forest
func (f *Forest) Has(id string) bool {
	_, ok := f.nodes[id]
	return ok
}

// Roots returns the top-level accounts in order
func (f *Forest) Roots() []models.Account {
	return f.collect(f.children[rootKey])
}

// Children returns the direct children of id in order
func (f *Forest) Children(id string) []models.Account {
	if id == rootKey {
		return nil
	}
	return f.collect(f.children[id])
}

// IsLeaf reports whether id exists and has no children
func (f *Forest) IsLeaf(id string) bool {
	return f.Has(id) && len(f.children[id]) == 0
}

// Orphans returns the records that were left out when the forest was built
func (f *Forest) Orphans() []models.Account {
	return append([]models.Account(nil), f.orphans...)
}

// Path returns the accounts from the root down to id
func (f *Forest) Path(id string) ([]models.Account, error) {
	a, ok := f.nodes[id]
	if !ok {
		return nil, ErrNodeNotFound
	}
	var path []models.Account
	for {
		path = append(path, a)
		if a.IsRoot() {
			break
		}
		a = f.nodes[a.ParentID()]
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

// Flat returns every account in pre-order
func (f *Forest) Flat() []models.Account {
	out := make([]models.Account, 0, len(f.nodes))
	stack := reversed(f.children[rootKey])
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, f.nodes[id])
		stack = append(stack, reversed(f.children[id])...)
	}
	return out
}

// Tree materializes the forest as nested nodes
func (f *Forest) Tree() []*models.Node {
	built := make(map[string]*models.Node, len(f.nodes))
	for id, a := range f.nodes {
		built[id] = models.NewNode(a)
	}
	for parent, ids := range f.children {
		if parent == rootKey {
			continue
		}
		for _, id := range ids {
			built[parent].AddChild(built[id])
		}
	}
	roots := make([]*models.Node, 0, len(f.children[rootKey]))
	for _, id := range f.children[rootKey] {
		roots = append(roots, built[id])
	}
	return roots
}

func (f *Forest) collect(ids []string) []models.Account {
	out := make([]models.Account, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.nodes[id])
	}
	return out
}

func (f *Forest) clone() *Forest {
	next := &Forest{
		nodes:    make(map[string]models.Account, len(f.nodes)),
		children: make(map[string][]string, len(f.children)),
		orphans:  f.orphans,
	}
	for id, a := range f.nodes {
		next.nodes[id] = a
	}
	for id, kids := range f.children {
		next.children[id] = kids
	}
	return next
}

func reversed(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}
