package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zms-erp/ledgertree/models"
)

func TestReduceDeleteLeafThenRoot(t *testing.T) {
	f, _ := NewForest(cashAccounts())

	f, err := Reduce(f, Delete{ID: "2"})
	require.NoError(t, err)
	roots := f.Tree()
	require.Len(t, roots, 1)
	assert.Equal(t, "1", roots[0].ID)
	assert.Empty(t, roots[0].Children)

	f, err = Reduce(f, Delete{ID: "1"})
	require.NoError(t, err)
	assert.Empty(t, f.Tree())
	assert.Equal(t, 0, f.Len())
}

func TestReduceDeleteRemovesSubtree(t *testing.T) {
	flat := append(cashAccounts(),
		account("3", "10.1.1", "Drawer", models.StringPtr("2")),
		account("4", "20", "Bank", nil),
	)
	f, _ := NewForest(flat)

	next, err := Reduce(f, Delete{ID: "1"})
	require.NoError(t, err)
	assert.Equal(t, 1, next.Len())
	assert.False(t, next.Has("3"))
	assert.Equal(t, "4", next.Roots()[0].ID)

	// the input is untouched
	assert.Equal(t, 4, f.Len())
	assert.True(t, f.Has("3"))
}

func TestReduceEditChangesOnlyDescription(t *testing.T) {
	f, _ := NewForest(cashAccounts())

	next, err := Reduce(f, Edit{ID: "1", Description: "Bank"})
	require.NoError(t, err)

	before := f.Tree()[0]
	after := next.Tree()[0]
	assert.Equal(t, "Bank", after.Description)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, before.ListID, after.ListID)
	assert.Equal(t, before.ParentAccountID, after.ParentAccountID)
	assert.Equal(t, before.Children, after.Children)
	assert.Equal(t, "Cash", before.Description)
}

func TestReduceAddRootAndChild(t *testing.T) {
	f, _ := NewForest(cashAccounts())

	f, err := Reduce(f, AddRoot{Account: account("5", "30", "Receivables", models.StringPtr("ignored"))})
	require.NoError(t, err)
	f, err = Reduce(f, AddChild{ParentID: "5", Account: account("6", "30.1", "Customer A", nil)})
	require.NoError(t, err)

	roots := f.Tree()
	require.Len(t, roots, 2)
	assert.Equal(t, "5", roots[1].ID)
	assert.Nil(t, roots[1].ParentAccountID)
	require.Len(t, roots[1].Children, 1)
	assert.Equal(t, "5", *roots[1].Children[0].ParentAccountID)
}

func TestReduceErrorsLeaveForestUnchanged(t *testing.T) {
	f, _ := NewForest(cashAccounts())

	testCases := []struct {
		name   string
		action Action
		err    error
	}{
		{name: "Edit unknown", action: Edit{ID: "9", Description: "x"}, err: ErrNodeNotFound},
		{name: "Delete unknown", action: Delete{ID: "9"}, err: ErrNodeNotFound},
		{name: "Child of unknown", action: AddChild{ParentID: "9", Account: account("7", "", "x", nil)}, err: ErrNodeNotFound},
		{name: "Duplicate id", action: AddRoot{Account: account("1", "", "x", nil)}, err: ErrDuplicateID},
		{name: "Missing id", action: AddRoot{Account: account("", "", "x", nil)}, err: ErrInvalidNode},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Reduce(f, tc.action)
			assert.ErrorIs(t, err, tc.err)
			assert.Same(t, f, next)
			assert.Equal(t, 2, f.Len())
		})
	}
}

func TestReduceReplace(t *testing.T) {
	f, _ := NewForest(cashAccounts())

	next, err := Reduce(f, Replace{Accounts: []models.Account{
		account("9", "90", "Fresh", nil),
		account("8", "80", "Dangling", models.StringPtr("x")),
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, next.Len())
	assert.Len(t, next.Orphans(), 1)
	assert.Equal(t, 2, f.Len())
}

func TestReduceNilForest(t *testing.T) {
	f, err := Reduce(nil, AddRoot{Account: account("1", "10", "Cash", nil)})
	require.NoError(t, err)
	assert.Equal(t, 1, f.Len())
}
