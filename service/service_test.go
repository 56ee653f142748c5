package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zms-erp/ledgertree/cache"
	"github.com/zms-erp/ledgertree/hierarchy"
	"github.com/zms-erp/ledgertree/models"
	"github.com/zms-erp/ledgertree/repository"
)

type fakeBackend struct {
	mu        sync.Mutex
	data      map[string][]models.Account
	nextID    int
	listCalls int
	listErr   error
	createErr error
	created   []models.Account
	updated   []models.Account
	deleted   []string
	balances  []models.OpeningBalance
	statusErr map[string]error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{data: map[string][]models.Account{}, nextID: 100}
}

func (b *fakeBackend) seed(resource string, accounts ...models.Account) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[resource] = append(b.data[resource], accounts...)
}

func (b *fakeBackend) ListAll(ctx context.Context, resource string) ([]models.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listCalls++
	if b.listErr != nil {
		return nil, b.listErr
	}
	return models.NormalizeAccounts(b.data[resource]), nil
}

func (b *fakeBackend) Create(ctx context.Context, resource string, account models.Account) (models.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.createErr != nil {
		return models.Account{}, b.createErr
	}
	b.nextID++
	account.ID = fmt.Sprint(b.nextID)
	account.ListID = fmt.Sprintf("L%d", b.nextID)
	b.created = append(b.created, account)
	b.data[resource] = append(b.data[resource], account)
	return account, nil
}

func (b *fakeBackend) Update(ctx context.Context, resource string, account models.Account) (models.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updated = append(b.updated, account)
	for i, a := range b.data[resource] {
		if a.ID == account.ID {
			b.data[resource][i] = account
		}
	}
	return account, nil
}

func (b *fakeBackend) Delete(ctx context.Context, resource, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, id)
	forest, _ := hierarchy.NewForest(b.data[resource])
	next, err := hierarchy.Reduce(forest, hierarchy.Delete{ID: id})
	if err != nil {
		return err
	}
	b.data[resource] = next.Flat()
	return nil
}

func (b *fakeBackend) UpdateStatus(ctx context.Context, resource string, ids []string, status string) []models.StatusOutcome {
	out := make([]models.StatusOutcome, 0, len(ids))
	for _, id := range ids {
		if err := b.statusErr[id]; err != nil {
			out = append(out, models.StatusOutcome{ID: id, Error: err.Error()})
			continue
		}
		out = append(out, models.StatusOutcome{ID: id, OK: true})
	}
	return out
}

func (b *fakeBackend) CreateOpeningBalance(ctx context.Context, balance models.OpeningBalance) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances = append(b.balances, balance)
	return nil
}

func (b *fakeBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listCalls
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func setup(t *testing.T) (*AccountService, *fakeBackend, *repository.MemoryRepository) {
	t.Helper()
	cache.ResetProvider()
	require.NoError(t, cache.SetProvider(cache.NewMemoryCache()))
	t.Cleanup(cache.ResetProvider)

	backend := newFakeBackend()
	backend.seed("assets",
		models.Account{ID: "1", ListID: "10", Description: "Cash"},
		models.Account{ID: "2", ListID: "10.1", Description: "Petty Cash", ParentAccountID: models.StringPtr("1")},
		models.Account{ID: "3", ListID: "11", Description: "Bank"},
	)
	backend.seed("expenses",
		models.Account{ID: "50", ListID: "5", Description: "Expenses"},
		models.Account{ID: "51", ListID: "5.1", Description: "Rent", ParentAccountID: models.StringPtr("50")},
	)
	repo := repository.NewMemoryRepository()
	svc := NewAccountService(backend, repo, models.DefaultCategories, WithLogger(quietLogger()))
	return svc, backend, repo
}

func headerKey(c models.Category) string {
	return "category:" + string(c)
}

func TestTreeInjectsHeader(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	view, err := svc.Tree(ctx, models.CategoryAssets, "")
	require.NoError(t, err)
	require.Len(t, view.Roots, 1)
	header := view.Roots[0]
	assert.True(t, header.IsCategory())
	assert.Equal(t, "1", header.ListID)
	assert.Empty(t, header.ID)
	require.Len(t, header.Children, 2)
	assert.Equal(t, "Cash", header.Children[0].Description)
	assert.Equal(t, "Petty Cash", header.Children[0].Children[0].Description)
	assert.False(t, view.Stale)

	// expenses already has an account with the header list id
	view, err = svc.Tree(ctx, models.CategoryExpenses, "")
	require.NoError(t, err)
	require.Len(t, view.Roots, 1)
	assert.False(t, view.Roots[0].IsCategory())
	assert.Equal(t, "50", view.Roots[0].ID)
}

func TestTreeFiltersRootsOnly(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	view, err := svc.Tree(ctx, models.CategoryAssets, "BANK")
	require.NoError(t, err)
	require.Len(t, view.Roots[0].Children, 1)
	assert.Equal(t, "Bank", view.Roots[0].Children[0].Description)

	view, err = svc.Tree(ctx, models.CategoryAssets, "petty")
	require.NoError(t, err)
	assert.Empty(t, view.Roots[0].Children, "children are not searched")
}

func TestTreeUsesCache(t *testing.T) {
	svc, backend, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Tree(ctx, models.CategoryAssets, "")
	require.NoError(t, err)
	_, err = svc.Tree(ctx, models.CategoryAssets, "")
	require.NoError(t, err)
	assert.Equal(t, 1, backend.calls())
}

func TestTreeUnknownCategory(t *testing.T) {
	svc, _, _ := setup(t)
	_, err := svc.Tree(context.Background(), "equity", "")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestTreeReportsOrphans(t *testing.T) {
	svc, backend, _ := setup(t)
	backend.seed("revenue",
		models.Account{ID: "r1", ListID: "4", Description: "Revenue"},
		models.Account{ID: "r2", ListID: "4.9", Description: "Lost", ParentAccountID: models.StringPtr("gone")},
	)

	view, err := svc.Tree(context.Background(), models.CategoryRevenue, "")
	require.NoError(t, err)
	require.Len(t, view.Orphans, 1)
	assert.Equal(t, "r2", view.Orphans[0].ID)
}

func TestAddCreatesRoot(t *testing.T) {
	svc, backend, repo := setup(t)
	ctx := context.Background()
	_, err := svc.Tree(ctx, models.CategoryAssets, "")
	require.NoError(t, err)

	created, err := svc.Add(ctx, models.CategoryAssets, "  Stock ")
	require.NoError(t, err)
	assert.Equal(t, "Stock", created.Description)
	assert.Nil(t, backend.created[0].ParentAccountID)
	assert.Equal(t, 2, backend.calls(), "mutation triggers a refetch")

	view, err := svc.Tree(ctx, models.CategoryAssets, "")
	require.NoError(t, err)
	children := view.Roots[0].Children
	require.Len(t, children, 3)
	assert.Equal(t, created.ID, children[2].ID)

	stored, err := repo.GetAccount(ctx, models.CategoryAssets, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Stock", stored.Description)
}

func TestAddChildUnderHeaderCreatesRoot(t *testing.T) {
	svc, backend, _ := setup(t)
	ctx := context.Background()

	created, err := svc.AddChild(ctx, models.CategoryAssets, headerKey(models.CategoryAssets), "Receivables")
	require.NoError(t, err)
	require.Len(t, backend.created, 1)
	assert.Nil(t, backend.created[0].ParentAccountID, "header is never sent as a parent")
	assert.True(t, created.IsRoot())
}

func TestAddChild(t *testing.T) {
	svc, backend, _ := setup(t)
	ctx := context.Background()

	created, err := svc.AddChild(ctx, models.CategoryAssets, "2", "Drawer")
	require.NoError(t, err)
	assert.Equal(t, "2", *backend.created[0].ParentAccountID)
	assert.Equal(t, "2", created.ParentID())

	res, err := svc.LedgerPath(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Assets → Cash → Petty Cash → Drawer", res.Label)
	assert.Equal(t, created.ID, res.Value)
}

func TestAddChildUnknownParent(t *testing.T) {
	svc, backend, _ := setup(t)
	_, err := svc.AddChild(context.Background(), models.CategoryAssets, "nope", "Drawer")
	assert.ErrorIs(t, err, hierarchy.ErrNodeNotFound)
	assert.Empty(t, backend.created)
}

func TestValidationHappensBeforeBackend(t *testing.T) {
	svc, backend, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, models.CategoryAssets, "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Edit(ctx, models.CategoryAssets, "1", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, backend.created)
	assert.Empty(t, backend.updated)
}

func TestBackendFailureLeavesTreeUnchanged(t *testing.T) {
	svc, backend, _ := setup(t)
	ctx := context.Background()
	before, err := svc.Tree(ctx, models.CategoryAssets, "")
	require.NoError(t, err)

	backend.createErr = errors.New("backend down")
	_, err = svc.Add(ctx, models.CategoryAssets, "Stock")
	require.Error(t, err)

	after, err := svc.Tree(ctx, models.CategoryAssets, "")
	require.NoError(t, err)
	assert.Equal(t, before.Roots, after.Roots)
}

func TestEditPreservesListIDAndParent(t *testing.T) {
	svc, backend, _ := setup(t)
	ctx := context.Background()

	updated, err := svc.Edit(ctx, models.CategoryAssets, "2", "Float")
	require.NoError(t, err)
	require.Len(t, backend.updated, 1)
	sent := backend.updated[0]
	assert.Equal(t, "10.1", sent.ListID)
	assert.Equal(t, "1", sent.ParentID())
	assert.Equal(t, "Float", sent.Description)
	assert.Equal(t, "Float", updated.Description)

	view, err := svc.Tree(ctx, models.CategoryAssets, "")
	require.NoError(t, err)
	assert.Equal(t, "Float", view.Roots[0].Children[0].Children[0].Description)
}

func TestHeaderCannotBeEditedOrDeleted(t *testing.T) {
	svc, backend, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Edit(ctx, models.CategoryAssets, headerKey(models.CategoryAssets), "Things")
	assert.ErrorIs(t, err, ErrCategoryHeader)
	err = svc.Delete(ctx, models.CategoryAssets, headerKey(models.CategoryAssets))
	assert.ErrorIs(t, err, ErrCategoryHeader)
	assert.Empty(t, backend.updated)
	assert.Empty(t, backend.deleted)
}

func TestDeleteRemovesSubtree(t *testing.T) {
	svc, backend, repo := setup(t)
	ctx := context.Background()
	_, err := svc.Tree(ctx, models.CategoryAssets, "")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, models.CategoryAssets, "1"))
	assert.Equal(t, []string{"1"}, backend.deleted)

	_, err = repo.GetAccount(ctx, models.CategoryAssets, "2")
	assert.ErrorIs(t, err, repository.ErrAccountNotFound)

	err = svc.Delete(ctx, models.CategoryAssets, "1")
	assert.ErrorIs(t, err, hierarchy.ErrNodeNotFound)
}

func TestStaleSnapshotFallback(t *testing.T) {
	svc, backend, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, svc.Refresh(ctx, models.CategoryAssets))
	cache.InvalidateCache()
	backend.listErr = errors.New("connection refused")

	view, err := svc.Tree(ctx, models.CategoryAssets, "")
	require.NoError(t, err)
	assert.True(t, view.Stale)
	assert.Len(t, view.Roots[0].Children, 2)

	_, err = svc.Tree(ctx, models.CategoryLiabilities, "")
	assert.Error(t, err, "no snapshot to fall back to")
}

type failingUpsertRepository struct {
	*repository.MemoryRepository
}

func (r failingUpsertRepository) UpsertAccount(ctx context.Context, category models.Category, account models.Account) error {
	return errors.New("disk full")
}

func TestCreateKeptWhenRefetchFails(t *testing.T) {
	_, backend, _ := setup(t)
	svc := NewAccountService(backend, failingUpsertRepository{repository.NewMemoryRepository()},
		models.DefaultCategories, WithLogger(quietLogger()))
	ctx := context.Background()

	_, err := svc.Tree(ctx, models.CategoryAssets, "")
	require.NoError(t, err)

	backend.mu.Lock()
	backend.listErr = errors.New("connection refused")
	backend.mu.Unlock()

	created, err := svc.Add(ctx, models.CategoryAssets, "Stock")
	require.NoError(t, err)

	view, err := svc.Tree(ctx, models.CategoryAssets, "")
	require.NoError(t, err)
	assert.True(t, view.Stale)
	header := view.Roots[0]
	require.Len(t, header.Children, 3)
	assert.Equal(t, created.ID, header.Children[2].ID)
	assert.Equal(t, "Stock", header.Children[2].Description)

	account, err := svc.lookup(ctx, models.DefaultCategories[0], created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Stock", account.Description)

	backend.mu.Lock()
	backend.listErr = nil
	backend.mu.Unlock()
	require.NoError(t, svc.Refresh(ctx, models.CategoryAssets))
	view, err = svc.Tree(ctx, models.CategoryAssets, "")
	require.NoError(t, err)
	assert.False(t, view.Stale, "a successful refetch replaces the local forest")
	assert.Len(t, view.Roots[0].Children, 3)
}

func TestConcurrentMutationsAreSerialized(t *testing.T) {
	svc, backend, _ := setup(t)
	ctx := context.Background()
	_, err := svc.Tree(ctx, models.CategoryAssets, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.AddChild(ctx, models.CategoryAssets, "1", fmt.Sprintf("Drawer %d", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	view, err := svc.Tree(ctx, models.CategoryAssets, "")
	require.NoError(t, err)
	assert.Len(t, view.Roots[0].Children[0].Children, 9)
	assert.Len(t, backend.created, 8)
}

func TestRefreshAllJoinsErrors(t *testing.T) {
	svc, backend, _ := setup(t)
	backend.listErr = errors.New("down")
	err := svc.RefreshAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assets")
	assert.Contains(t, err.Error(), "expenses")
}

func TestSearchLedger(t *testing.T) {
	svc, _, _ := setup(t)

	results, err := svc.SearchLedger(context.Background(), "petty")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "2", results[0].ID)
	assert.Equal(t, "Cash → Petty Cash", results[0].Label)
	assert.Equal(t, models.CategoryAssets, results[0].Category)
	assert.Equal(t, []string{"1", "2"}, results[0].IDs)

	results, err = svc.SearchLedger(context.Background(), "rent")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Expenses → Rent", results[0].Label, "a real account carrying the header list id stays in the path")
	assert.Equal(t, models.CategoryExpenses, results[0].Category)

	results, err = svc.SearchLedger(context.Background(), "cash")
	require.NoError(t, err)
	require.Len(t, results, 1, "inner nodes are not selectable")

	results, err = svc.SearchLedger(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDrillDown(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	sel, err := svc.DrillDown(ctx, nil)
	require.NoError(t, err)
	keys := make([]string, 0, len(sel.Options))
	for _, o := range sel.Options {
		keys = append(keys, o.Key)
		assert.NotEqual(t, models.KindCategory, o.Kind)
	}
	assert.Equal(t, []string{"1", "3", "50"}, keys, "real roots of every category, no headers")
	assert.Equal(t, models.CategoryExpenses, sel.Options[2].Category)

	sel, err = svc.DrillDown(ctx, []string{"1"})
	require.NoError(t, err)
	assert.Empty(t, sel.Value, "inner node is not committed")
	require.Len(t, sel.Options, 1)
	assert.Equal(t, "2", sel.Options[0].Key)
	assert.True(t, sel.Options[0].Leaf)

	sel, err = svc.DrillDown(ctx, []string{"1", "2"})
	require.NoError(t, err)
	assert.Equal(t, "2", sel.Value)
	assert.Equal(t, "Cash → Petty Cash", sel.Label)

	_, err = svc.DrillDown(ctx, []string{headerKey(models.CategoryAssets)})
	assert.ErrorIs(t, err, ErrInvalidInput, "headers are not part of the ledger forest")

	_, err = svc.DrillDown(ctx, []string{"nope"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLedgerPathUnknown(t *testing.T) {
	svc, _, _ := setup(t)
	_, err := svc.LedgerPath(context.Background(), "missing")
	assert.ErrorIs(t, err, hierarchy.ErrNodeNotFound)
}

func TestPostOpeningBalance(t *testing.T) {
	svc, backend, _ := setup(t)
	ctx := context.Background()

	balance := models.OpeningBalance{
		AccountID: "2",
		Debit:     decimal.RequireFromString("500"),
		Credit:    decimal.Zero,
		Date:      "2024-07-01",
	}
	require.NoError(t, svc.PostOpeningBalance(ctx, balance))
	require.Len(t, backend.balances, 1)

	balance.AccountID = "1"
	assert.ErrorIs(t, svc.PostOpeningBalance(ctx, balance), ErrNotLeaf)

	balance.AccountID = "missing"
	assert.ErrorIs(t, svc.PostOpeningBalance(ctx, balance), hierarchy.ErrNodeNotFound)

	balance.AccountID = "2"
	balance.Credit = decimal.RequireFromString("1")
	assert.ErrorIs(t, svc.PostOpeningBalance(ctx, balance), ErrInvalidInput)
	assert.Len(t, backend.balances, 1)
}

func TestUpdateStatus(t *testing.T) {
	svc, backend, _ := setup(t)
	backend.statusErr = map[string]error{"b": errors.New("locked")}

	outcomes, err := svc.UpdateStatus(context.Background(), "party", models.StatusUpdateRequest{
		IDs:    []string{"a", "b"},
		Status: "inactive",
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].OK)
	assert.False(t, outcomes[1].OK)
	assert.Equal(t, "locked", outcomes[1].Error)

	_, err = svc.UpdateStatus(context.Background(), "party", models.StatusUpdateRequest{Status: "inactive"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMutationsInvalidateCache(t *testing.T) {
	svc, backend, _ := setup(t)
	mock := cache.NewMockCache()
	require.NoError(t, cache.SetProvider(mock))
	ctx := context.Background()

	_, err := svc.Tree(ctx, models.CategoryAssets, "")
	require.NoError(t, err)
	_, err = svc.Tree(ctx, models.CategoryAssets, "")
	require.NoError(t, err)
	assert.Equal(t, 1, backend.calls(), "second read is served from the cache")

	_, err = svc.Add(ctx, models.CategoryAssets, "Receivables")
	require.NoError(t, err)
	_, set, invalidate, _, _ := mock.GetCallCounts()
	assert.Equal(t, 1, invalidate)
	assert.Equal(t, 2, set)
	assert.Equal(t, 2, backend.calls())

	mock.Reset()
	mock.SetShouldFail(true)
	_, err = svc.Tree(ctx, models.CategoryAssets, "")
	require.NoError(t, err)
	assert.Equal(t, 3, backend.calls(), "a failing cache falls through to the backend")
}
