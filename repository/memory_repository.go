package repository

import (
	"context"
	"sync"
	"time"

	"github.com/zms-erp/ledgertree/models"
)

// MemoryRepository keeps snapshots in process memory.
// It is the default store and the one used by tests.
type MemoryRepository struct {
	snapshots map[models.Category]*Snapshot
	mu        sync.RWMutex
	now       func() time.Time
}

// NewMemoryRepository creates a new in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		snapshots: make(map[models.Category]*Snapshot),
		now:       time.Now,
	}
}

// Initialize performs any necessary setup
func (m *MemoryRepository) Initialize(ctx context.Context) error {
	return nil
}

// Cleanup drops every snapshot
func (m *MemoryRepository) Cleanup(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = make(map[models.Category]*Snapshot)
	return nil
}

// ReplaceAccounts stores a new snapshot for category
func (m *MemoryRepository) ReplaceAccounts(ctx context.Context, category models.Category, accounts []models.Account) error {
	if category == "" {
		return ErrInvalidInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[category] = &Snapshot{
		Category:    category,
		Accounts:    dedupe(accounts),
		RefreshedAt: m.now(),
	}
	return nil
}

// GetSnapshot returns a copy of the snapshot of category
func (m *MemoryRepository) GetSnapshot(ctx context.Context, category models.Category) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.snapshots[category]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return &Snapshot{
		Category:    snap.Category,
		Accounts:    models.NormalizeAccounts(snap.Accounts),
		RefreshedAt: snap.RefreshedAt,
	}, nil
}

// GetAccount retrieves an account by ID
func (m *MemoryRepository) GetAccount(ctx context.Context, category models.Category, id string) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.snapshots[category]
	if !ok {
		return nil, ErrAccountNotFound
	}
	for _, a := range snap.Accounts {
		if a.ID == id {
			found := a.Normalized()
			return &found, nil
		}
	}
	return nil, ErrAccountNotFound
}

// UpsertAccount inserts or replaces an account
func (m *MemoryRepository) UpsertAccount(ctx context.Context, category models.Category, account models.Account) error {
	if category == "" || !validAccount(account) {
		return ErrInvalidInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, ok := m.snapshots[category]
	if !ok {
		snap = &Snapshot{Category: category, RefreshedAt: m.now()}
		m.snapshots[category] = snap
	}
	account = account.Normalized()
	for i, a := range snap.Accounts {
		if a.ID == account.ID {
			snap.Accounts[i] = account
			return nil
		}
	}
	snap.Accounts = append(snap.Accounts, account)
	return nil
}

// DeleteAccount deletes an account and its descendants
func (m *MemoryRepository) DeleteAccount(ctx context.Context, category models.Category, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, ok := m.snapshots[category]
	if !ok {
		return ErrAccountNotFound
	}

	doomed := map[string]bool{}
	for _, a := range snap.Accounts {
		if a.ID == id {
			doomed[id] = true
			break
		}
	}
	if !doomed[id] {
		return ErrAccountNotFound
	}

	// widen the set until no record gains a doomed parent
	for changed := true; changed; {
		changed = false
		for _, a := range snap.Accounts {
			if !doomed[a.ID] && !a.IsRoot() && doomed[a.ParentID()] {
				doomed[a.ID] = true
				changed = true
			}
		}
	}

	kept := make([]models.Account, 0, len(snap.Accounts))
	for _, a := range snap.Accounts {
		if !doomed[a.ID] {
			kept = append(kept, a)
		}
	}
	snap.Accounts = kept
	return nil
}
