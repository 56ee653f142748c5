package hierarchy

import (
	"fmt"
	"slices"

	"github.com/zms-erp/ledgertree/models"
)

// Action is a change to a forest. Actions are applied with Reduce.
type Action interface {
	apply(f *Forest) error
}

// AddRoot appends a persisted account to the top level
type AddRoot struct {
	Account models.Account
}

// AddChild appends a persisted account under ParentID
type AddChild struct {
	ParentID string
	Account  models.Account
}

// Edit replaces the description of one account
type Edit struct {
	ID          string
	Description string
}

// Delete removes an account together with everything below it
type Delete struct {
	ID string
}

// Replace discards the forest and rebuilds it from a fresh list
type Replace struct {
	Accounts []models.Account
}

// Reduce applies action to f and returns the resulting forest. f itself is
// never modified; on error f is returned as is.
func Reduce(f *Forest, action Action) (*Forest, error) {
	if f == nil {
		f, _ = NewForest(nil)
	}
	next := f.clone()
	if err := action.apply(next); err != nil {
		return f, err
	}
	return next, nil
}

func (a AddRoot) apply(f *Forest) error {
	account := a.Account.Normalized()
	account.ParentAccountID = nil
	return f.insert(rootKey, account)
}

func (a AddChild) apply(f *Forest) error {
	if !f.Has(a.ParentID) {
		return fmt.Errorf("parent %q: %w", a.ParentID, ErrNodeNotFound)
	}
	account := a.Account.Normalized()
	account.ParentAccountID = models.StringPtr(a.ParentID)
	return f.insert(a.ParentID, account)
}

func (a Edit) apply(f *Forest) error {
	account, ok := f.nodes[a.ID]
	if !ok {
		return fmt.Errorf("account %q: %w", a.ID, ErrNodeNotFound)
	}
	account.Description = a.Description
	f.nodes[a.ID] = account
	return nil
}

func (a Delete) apply(f *Forest) error {
	account, ok := f.nodes[a.ID]
	if !ok {
		return fmt.Errorf("account %q: %w", a.ID, ErrNodeNotFound)
	}

	// Detach from the parent's child list
	parent := account.ParentID()
	siblings := slices.DeleteFunc(slices.Clone(f.children[parent]), func(id string) bool {
		return id == a.ID
	})
	if len(siblings) == 0 {
		delete(f.children, parent)
	} else {
		f.children[parent] = siblings
	}

	// Drop the whole subtree
	stack := []string{a.ID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		stack = append(stack, f.children[id]...)
		delete(f.children, id)
		delete(f.nodes, id)
	}
	return nil
}

func (a Replace) apply(f *Forest) error {
	rebuilt, _ := NewForest(a.Accounts)
	*f = *rebuilt
	return nil
}

func (f *Forest) insert(parent string, account models.Account) error {
	if account.ID == "" {
		return ErrInvalidNode
	}
	if f.Has(account.ID) {
		return fmt.Errorf("account %q: %w", account.ID, ErrDuplicateID)
	}
	f.nodes[account.ID] = account
	f.children[parent] = append(slices.Clone(f.children[parent]), account.ID)
	return nil
}
