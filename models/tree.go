package models

// NodeKind tells real accounts apart from synthetic category headers.
type NodeKind string

const (
	// KindAccount is a record persisted by the backend.
	KindAccount NodeKind = "account"
	// KindCategory is a header injected for display only. It has no id,
	// is never sent to the backend and can never be selected.
	KindCategory NodeKind = "category"
)

// Node represents a single account in the tree
type Node struct {
	Account
	Kind     NodeKind `json:"kind" dynamodbav:"kind"`
	Category Category `json:"category,omitempty" dynamodbav:"category,omitempty"`
	Children []*Node  `json:"children" dynamodbav:"children"`
}

// NewNode creates a new account node for the given record
func NewNode(account Account) *Node {
	return &Node{
		Account:  account.Normalized(),
		Kind:     KindAccount,
		Children: make([]*Node, 0),
	}
}

// NewCategoryNode creates a header node for a category
func NewCategoryNode(def CategoryDef) *Node {
	return &Node{
		Account: Account{
			ListID:      def.HeaderListID,
			Description: def.HeaderLabel,
		},
		Kind:     KindCategory,
		Category: def.Category,
		Children: make([]*Node, 0),
	}
}

// AddChild adds a child node to the current node
func (n *Node) AddChild(child *Node) {
	n.Children = append(n.Children, child)
}

// IsCategory reports whether the node is a synthetic category header
func (n *Node) IsCategory() bool {
	return n.Kind == KindCategory
}

// IsLeaf reports whether the node has no children
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Clone returns a deep copy of the node and its subtree
func (n *Node) Clone() *Node {
	out := &Node{
		Account:  n.Account.Normalized(),
		Kind:     n.Kind,
		Category: n.Category,
		Children: make([]*Node, 0, len(n.Children)),
	}
	for _, child := range n.Children {
		out.Children = append(out.Children, child.Clone())
	}
	return out
}
