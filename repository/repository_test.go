package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zms-erp/ledgertree/models"
)

func sampleAccounts() []models.Account {
	return []models.Account{
		{ID: "1", ListID: "1", Description: "Cash"},
		{ID: "2", ListID: "1.1", Description: "Petty Cash", ParentAccountID: models.StringPtr("1")},
		{ID: "3", ListID: "1.1.1", Description: "Drawer", ParentAccountID: models.StringPtr("2")},
		{ID: "4", ListID: "2", Description: "Bank", ParentAccountID: models.StringPtr("")},
	}
}

func repositories(t *testing.T) map[string]Repository {
	t.Helper()
	return map[string]Repository{
		"memory": NewMemoryRepository(),
		"sqlite": NewSQLiteRepository(filepath.Join(t.TempDir(), "snapshots.db")),
	}
}

func TestRepositories(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, repo.Initialize(ctx))
			defer repo.Cleanup(ctx)

			t.Run("missing snapshot", func(t *testing.T) {
				_, err := repo.GetSnapshot(ctx, models.CategoryRevenue)
				assert.ErrorIs(t, err, ErrSnapshotNotFound)
			})

			t.Run("replace keeps order and first duplicate", func(t *testing.T) {
				accounts := append(sampleAccounts(), models.Account{ID: "1", ListID: "9", Description: "Dup"})
				require.NoError(t, repo.ReplaceAccounts(ctx, models.CategoryAssets, accounts))

				snap, err := repo.GetSnapshot(ctx, models.CategoryAssets)
				require.NoError(t, err)
				require.Len(t, snap.Accounts, 4)
				assert.Equal(t, "Cash", snap.Accounts[0].Description)
				assert.Equal(t, "Bank", snap.Accounts[3].Description)
				assert.Nil(t, snap.Accounts[3].ParentAccountID, "empty parent stored as root")
				assert.False(t, snap.RefreshedAt.IsZero())
			})

			t.Run("categories are isolated", func(t *testing.T) {
				require.NoError(t, repo.ReplaceAccounts(ctx, models.CategoryExpenses, []models.Account{
					{ID: "1", ListID: "1", Description: "Rent"},
				}))
				a, err := repo.GetAccount(ctx, models.CategoryAssets, "1")
				require.NoError(t, err)
				assert.Equal(t, "Cash", a.Description)
			})

			t.Run("upsert updates and appends", func(t *testing.T) {
				require.NoError(t, repo.UpsertAccount(ctx, models.CategoryAssets, models.Account{
					ID: "2", ListID: "1.1", Description: "Petty Cash Box", ParentAccountID: models.StringPtr("1"),
				}))
				require.NoError(t, repo.UpsertAccount(ctx, models.CategoryAssets, models.Account{
					ID: "5", ListID: "3", Description: "Stock",
				}))

				snap, err := repo.GetSnapshot(ctx, models.CategoryAssets)
				require.NoError(t, err)
				require.Len(t, snap.Accounts, 5)
				assert.Equal(t, "Petty Cash Box", snap.Accounts[1].Description)
				assert.Equal(t, "Stock", snap.Accounts[4].Description)
			})

			t.Run("upsert rejects invalid account", func(t *testing.T) {
				err := repo.UpsertAccount(ctx, models.CategoryAssets, models.Account{ID: "6"})
				assert.ErrorIs(t, err, ErrInvalidInput)
			})

			t.Run("delete removes subtree", func(t *testing.T) {
				require.NoError(t, repo.DeleteAccount(ctx, models.CategoryAssets, "1"))

				snap, err := repo.GetSnapshot(ctx, models.CategoryAssets)
				require.NoError(t, err)
				var ids []string
				for _, a := range snap.Accounts {
					ids = append(ids, a.ID)
				}
				assert.Equal(t, []string{"4", "5"}, ids)

				_, err = repo.GetAccount(ctx, models.CategoryAssets, "3")
				assert.ErrorIs(t, err, ErrAccountNotFound)
			})

			t.Run("delete missing", func(t *testing.T) {
				err := repo.DeleteAccount(ctx, models.CategoryAssets, "nope")
				assert.ErrorIs(t, err, ErrAccountNotFound)
			})

			t.Run("delete survives parent cycle", func(t *testing.T) {
				require.NoError(t, repo.ReplaceAccounts(ctx, models.CategoryLiabilities, []models.Account{
					{ID: "a", Description: "A", ParentAccountID: models.StringPtr("b")},
					{ID: "b", Description: "B", ParentAccountID: models.StringPtr("a")},
					{ID: "c", Description: "C"},
				}))
				require.NoError(t, repo.DeleteAccount(ctx, models.CategoryLiabilities, "a"))

				snap, err := repo.GetSnapshot(ctx, models.CategoryLiabilities)
				require.NoError(t, err)
				require.Len(t, snap.Accounts, 1)
				assert.Equal(t, "c", snap.Accounts[0].ID)
			})
		})
	}
}

func TestMemoryRepositoryCleanup(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.ReplaceAccounts(ctx, models.CategoryAssets, sampleAccounts()))
	require.NoError(t, repo.Cleanup(ctx))

	_, err := repo.GetSnapshot(ctx, models.CategoryAssets)
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestMemoryRepositorySnapshotIsCopy(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	require.NoError(t, repo.ReplaceAccounts(ctx, models.CategoryAssets, sampleAccounts()))

	snap, err := repo.GetSnapshot(ctx, models.CategoryAssets)
	require.NoError(t, err)
	snap.Accounts[0].Description = "changed"
	*snap.Accounts[1].ParentAccountID = "changed"

	again, err := repo.GetSnapshot(ctx, models.CategoryAssets)
	require.NoError(t, err)
	assert.Equal(t, "Cash", again.Accounts[0].Description)
	assert.Equal(t, "1", *again.Accounts[1].ParentAccountID)
}

func TestRebind(t *testing.T) {
	r := &sqlRepository{numbered: true}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", r.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))

	r = &sqlRepository{}
	assert.Equal(t, "x = ?", r.rebind("x = ?"))
}
