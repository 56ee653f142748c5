package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/zms-erp/ledgertree/hierarchy"
	"github.com/zms-erp/ledgertree/models"
	"github.com/zms-erp/ledgertree/selector"
)

// LedgerOption is one choice of a drill-down level
type LedgerOption struct {
	Key         string          `json:"key"`
	Category    models.Category `json:"category"`
	ListID      string          `json:"listid"`
	Description string          `json:"description"`
	Kind        models.NodeKind `json:"kind"`
	Leaf        bool            `json:"leaf"`
}

// LedgerSelection is the state of the account picker after a drill-down or
// for a stored account id
type LedgerSelection struct {
	// Value is the committed leaf id, empty while an inner node is selected
	Value   string         `json:"value"`
	Label   string         `json:"label"`
	Path    []LedgerOption `json:"path"`
	Options []LedgerOption `json:"options"`
}

// SearchResult is one selectable leaf
type SearchResult struct {
	ID       string          `json:"id"`
	Category models.Category `json:"category"`
	Label    string          `json:"label"`
	IDs      []string        `json:"ids"`
}

// LedgerRoots assembles the account trees of every category in category
// order. No headers are injected; each node carries its category instead.
func (s *AccountService) LedgerRoots(ctx context.Context) ([]*models.Node, error) {
	trees := make([][]*models.Node, len(s.categories))
	g, gctx := errgroup.WithContext(ctx)
	for i, def := range s.categories {
		g.Go(func() error {
			st, err := s.load(gctx, def)
			if err != nil {
				return fmt.Errorf("%s: %w", def.Category, err)
			}
			roots := st.forest.Tree()
			setCategory(roots, def.Category)
			trees[i] = roots
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var roots []*models.Node
	for _, t := range trees {
		roots = append(roots, t...)
	}
	return roots, nil
}

// SearchLedger finds leaf accounts across all categories whose full label
// contains query
func (s *AccountService) SearchLedger(ctx context.Context, query string) ([]SearchResult, error) {
	roots, err := s.LedgerRoots(ctx)
	if err != nil {
		return nil, err
	}
	leaves := selector.New(roots, "").Search(query)
	results := make([]SearchResult, 0, len(leaves))
	for _, leaf := range leaves {
		results = append(results, SearchResult{
			ID:       leaf.ID,
			Category: leaf.Path[0].Category,
			Label:    leaf.Label,
			IDs:      leaf.IDs(),
		})
	}
	return results, nil
}

// LedgerPath restores the picker for a stored account id
func (s *AccountService) LedgerPath(ctx context.Context, id string) (*LedgerSelection, error) {
	roots, err := s.LedgerRoots(ctx)
	if err != nil {
		return nil, err
	}
	sel := selector.New(roots, id)
	if len(sel.Path()) == 0 {
		return nil, fmt.Errorf("account %s: %w", id, hierarchy.ErrNodeNotFound)
	}
	return selection(sel), nil
}

// DrillDown replays a sequence of picks, one node key per level, and returns
// the options of the next level
func (s *AccountService) DrillDown(ctx context.Context, keys []string) (*LedgerSelection, error) {
	roots, err := s.LedgerRoots(ctx)
	if err != nil {
		return nil, err
	}
	sel := selector.New(roots, "")
	for level, key := range keys {
		if err := sel.Select(level, key); err != nil {
			return nil, fmt.Errorf("%w: level %d: %v", ErrInvalidInput, level, err)
		}
	}
	return selection(sel), nil
}

// PostOpeningBalance records the opening entry of a leaf account
func (s *AccountService) PostOpeningBalance(ctx context.Context, balance models.OpeningBalance) error {
	if err := balance.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	roots, err := s.LedgerRoots(ctx)
	if err != nil {
		return err
	}
	path := hierarchy.FindPath(roots, balance.AccountID)
	if path == nil {
		return fmt.Errorf("account %s: %w", balance.AccountID, hierarchy.ErrNodeNotFound)
	}
	if !path[len(path)-1].IsLeaf() {
		return fmt.Errorf("account %s: %w", balance.AccountID, ErrNotLeaf)
	}

	if err := s.backend.CreateOpeningBalance(ctx, balance); err != nil {
		return err
	}
	s.logger.WithField("account", balance.AccountID).
		WithField("amount", balance.Amount().String()).
		Info("opening balance posted")
	return nil
}

func selection(sel *selector.Selector) *LedgerSelection {
	path := sel.Path()
	return &LedgerSelection{
		Value:   sel.Value(),
		Label:   sel.Label(),
		Path:    options(path),
		Options: options(sel.Options(len(path))),
	}
}

func options(nodes []*models.Node) []LedgerOption {
	out := make([]LedgerOption, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, LedgerOption{
			Key:         hierarchy.NodeKey(n),
			Category:    n.Category,
			ListID:      n.ListID,
			Description: n.Description,
			Kind:        n.Kind,
			Leaf:        n.IsLeaf() && !n.IsCategory(),
		})
	}
	return out
}

func setCategory(roots []*models.Node, c models.Category) {
	stack := append([]*models.Node(nil), roots...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n.Category = c
		stack = append(stack, n.Children...)
	}
}
