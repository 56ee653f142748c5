package repository

import (
	"context"
	"errors"
	"time"

	"github.com/zms-erp/ledgertree/models"
)

// Snapshot is the last known good account list of a category
type Snapshot struct {
	Category    models.Category
	Accounts    []models.Account // in backend order
	RefreshedAt time.Time
}

// Repository stores snapshots of the backend account lists.
// It is the fallback when the backend cannot be reached, not a source of truth.
type Repository interface {
	// Initialize performs any necessary setup for the repository.
	// This may include establishing database connections or running migrations.
	Initialize(ctx context.Context) error

	// Cleanup releases the resources held by the repository.
	Cleanup(ctx context.Context) error

	// ReplaceAccounts stores accounts as the snapshot of category,
	// replacing any previous one. Duplicate ids keep their first occurrence.
	ReplaceAccounts(ctx context.Context, category models.Category, accounts []models.Account) error

	// GetSnapshot returns the snapshot of category.
	// Returns ErrSnapshotNotFound if the category was never stored.
	GetSnapshot(ctx context.Context, category models.Category) (*Snapshot, error)

	// GetAccount returns one account of a snapshot.
	// Returns ErrAccountNotFound if no account exists with the given ID.
	GetAccount(ctx context.Context, category models.Category, id string) (*models.Account, error)

	// UpsertAccount inserts or updates one account of a snapshot.
	// New accounts are appended after the existing ones.
	UpsertAccount(ctx context.Context, category models.Category, account models.Account) error

	// DeleteAccount removes an account and all of its descendants.
	// Returns ErrAccountNotFound if no account exists with the given ID.
	DeleteAccount(ctx context.Context, category models.Category, id string) error
}

// Common errors
var (
	// ErrSnapshotNotFound is returned when a category has no stored snapshot
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrAccountNotFound is returned when a requested account does not exist
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidInput is returned when the input parameters are invalid
	ErrInvalidInput = errors.New("invalid input")
)

// dedupe drops later records that repeat an id and normalizes parents
func dedupe(accounts []models.Account) []models.Account {
	seen := make(map[string]bool, len(accounts))
	out := make([]models.Account, 0, len(accounts))
	for _, a := range accounts {
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		out = append(out, a.Normalized())
	}
	return out
}

func validAccount(account models.Account) bool {
	return account.ID != "" && account.Description != ""
}
