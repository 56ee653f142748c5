// Package service keeps the account forest of each category in step with
// the backend. Every mutation goes to the backend first; the local forest
// changes only after the backend accepted it, and is then replaced by a
// full refetch. When that refetch fails, the locally reduced forest is kept
// until the backend answers again.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zms-erp/ledgertree/cache"
	"github.com/zms-erp/ledgertree/hierarchy"
	"github.com/zms-erp/ledgertree/models"
	"github.com/zms-erp/ledgertree/repository"
)

var (
	// ErrInvalidInput is returned when a request fails validation
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnknownCategory is returned for a category that is not configured
	ErrUnknownCategory = errors.New("unknown category")
	// ErrCategoryHeader is returned when a category header is edited or deleted
	ErrCategoryHeader = errors.New("category header cannot be modified")
	// ErrNotLeaf is returned when an operation needs a leaf account
	ErrNotLeaf = errors.New("account is not a leaf")
)

// Backend is the part of the REST backend the service depends on
type Backend interface {
	ListAll(ctx context.Context, resource string) ([]models.Account, error)
	Create(ctx context.Context, resource string, account models.Account) (models.Account, error)
	Update(ctx context.Context, resource string, account models.Account) (models.Account, error)
	Delete(ctx context.Context, resource, id string) error
	UpdateStatus(ctx context.Context, resource string, ids []string, status string) []models.StatusOutcome
	CreateOpeningBalance(ctx context.Context, balance models.OpeningBalance) error
}

// TreeView is the display tree of one category
type TreeView struct {
	Category models.Category  `json:"category"`
	Roots    []*models.Node   `json:"roots"`
	Orphans  []models.Account `json:"orphans,omitempty"`
	// Stale is set when the backend could not be reached and the tree was
	// built from the last stored snapshot
	Stale bool `json:"stale"`
}

type state struct {
	forest *hierarchy.Forest
	stale  bool
	// pending marks a forest reduced locally after a mutation that no
	// successful refetch has confirmed yet
	pending bool
}

// AccountService orchestrates backend, snapshot store and cache
type AccountService struct {
	backend    Backend
	repo       repository.Repository
	categories []models.CategoryDef
	logger     *logrus.Logger

	mu     sync.Mutex
	states map[models.Category]*state
	// writes serializes mutations per category
	writes map[models.Category]*sync.Mutex
}

// Option configures an AccountService
type Option func(*AccountService)

// WithLogger sets the logger
func WithLogger(l *logrus.Logger) Option {
	return func(s *AccountService) {
		s.logger = l
	}
}

// NewAccountService creates a service over the given categories
func NewAccountService(backend Backend, repo repository.Repository, categories []models.CategoryDef, opts ...Option) *AccountService {
	s := &AccountService{
		backend:    backend,
		repo:       repo,
		categories: categories,
		logger:     logrus.StandardLogger(),
		states:     make(map[models.Category]*state),
		writes:     make(map[models.Category]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Categories returns the configured category definitions
func (s *AccountService) Categories() []models.CategoryDef {
	return append([]models.CategoryDef(nil), s.categories...)
}

// Category resolves a configured category
func (s *AccountService) Category(c models.Category) (models.CategoryDef, error) {
	def, ok := models.LookupCategory(s.categories, c)
	if !ok {
		return models.CategoryDef{}, fmt.Errorf("%w: %s", ErrUnknownCategory, c)
	}
	return def, nil
}

// Tree returns the display tree of a category. A non-empty query keeps only
// the roots whose list id or description matches; children are not searched.
func (s *AccountService) Tree(ctx context.Context, c models.Category, query string) (*TreeView, error) {
	def, err := s.Category(c)
	if err != nil {
		return nil, err
	}
	st, err := s.load(ctx, def)
	if err != nil {
		return nil, err
	}

	all := st.forest.Tree()
	roots := hierarchy.FilterRoots(all, query)
	if hierarchy.NeedsHeader(all, def) {
		roots = hierarchy.WrapInHeader(def, roots)
	}
	return &TreeView{
		Category: def.Category,
		Roots:    roots,
		Orphans:  st.forest.Orphans(),
		Stale:    st.stale,
	}, nil
}

// Refresh refetches a category from the backend
func (s *AccountService) Refresh(ctx context.Context, c models.Category) error {
	def, err := s.Category(c)
	if err != nil {
		return err
	}
	_, err = s.refresh(ctx, def)
	return err
}

// RefreshAll refetches every category, continuing past failures
func (s *AccountService) RefreshAll(ctx context.Context) error {
	var errs []error
	for _, def := range s.categories {
		if _, err := s.refresh(ctx, def); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", def.Category, err))
		}
	}
	return errors.Join(errs...)
}

// Add creates a top-level account
func (s *AccountService) Add(ctx context.Context, c models.Category, description string) (models.Account, error) {
	def, err := s.Category(c)
	if err != nil {
		return models.Account{}, err
	}
	req := models.CreateAccountRequest{Description: strings.TrimSpace(description)}
	if err := req.Validate(); err != nil {
		return models.Account{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	unlock := s.lockCategory(def.Category)
	defer unlock()

	if _, err := s.load(ctx, def); err != nil {
		return models.Account{}, err
	}

	created, err := s.backend.Create(ctx, def.Resource, models.Account{Description: req.Description})
	if err != nil {
		return models.Account{}, err
	}
	if created.ID == "" {
		return models.Account{}, fmt.Errorf("backend created %s account without an id", def.Category)
	}
	created.ParentAccountID = nil

	s.apply(ctx, def, hierarchy.AddRoot{Account: created}, func() error {
		return s.repo.UpsertAccount(ctx, def.Category, created)
	})
	return created, nil
}

// AddChild creates an account under parentKey. A blank key or the key of
// the category header creates a top-level account instead, so the header
// never reaches the backend as a parent.
func (s *AccountService) AddChild(ctx context.Context, c models.Category, parentKey, description string) (models.Account, error) {
	def, err := s.Category(c)
	if err != nil {
		return models.Account{}, err
	}
	if parentKey == "" || isHeaderKey(def, parentKey) {
		return s.Add(ctx, c, description)
	}

	req := models.CreateAccountRequest{
		Description:     strings.TrimSpace(description),
		ParentAccountID: models.StringPtr(parentKey),
	}
	if err := req.Validate(); err != nil {
		return models.Account{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	unlock := s.lockCategory(def.Category)
	defer unlock()

	st, err := s.load(ctx, def)
	if err != nil {
		return models.Account{}, err
	}
	if !st.forest.Has(parentKey) {
		return models.Account{}, fmt.Errorf("parent %s: %w", parentKey, hierarchy.ErrNodeNotFound)
	}

	created, err := s.backend.Create(ctx, def.Resource, models.Account{
		Description:     req.Description,
		ParentAccountID: req.ParentAccountID,
	})
	if err != nil {
		return models.Account{}, err
	}
	if created.ID == "" {
		return models.Account{}, fmt.Errorf("backend created %s account without an id", def.Category)
	}
	created.ParentAccountID = models.StringPtr(parentKey)

	s.apply(ctx, def, hierarchy.AddChild{ParentID: parentKey, Account: created}, func() error {
		return s.repo.UpsertAccount(ctx, def.Category, created)
	})
	return created, nil
}

// Edit renames an account. The stored list id and parent are sent back
// unchanged.
func (s *AccountService) Edit(ctx context.Context, c models.Category, id, description string) (models.Account, error) {
	def, err := s.Category(c)
	if err != nil {
		return models.Account{}, err
	}
	if isHeaderKey(def, id) {
		return models.Account{}, ErrCategoryHeader
	}
	req := models.UpdateAccountRequest{Description: strings.TrimSpace(description)}
	if err := req.Validate(); err != nil {
		return models.Account{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	unlock := s.lockCategory(def.Category)
	defer unlock()

	current, err := s.lookup(ctx, def, id)
	if err != nil {
		return models.Account{}, err
	}
	updated := current
	updated.Description = req.Description

	if _, err := s.backend.Update(ctx, def.Resource, updated); err != nil {
		return models.Account{}, err
	}

	s.apply(ctx, def, hierarchy.Edit{ID: id, Description: updated.Description}, func() error {
		return s.repo.UpsertAccount(ctx, def.Category, updated)
	})
	return updated, nil
}

// Delete removes an account and everything below it
func (s *AccountService) Delete(ctx context.Context, c models.Category, id string) error {
	def, err := s.Category(c)
	if err != nil {
		return err
	}
	if isHeaderKey(def, id) {
		return ErrCategoryHeader
	}

	unlock := s.lockCategory(def.Category)
	defer unlock()

	if _, err := s.lookup(ctx, def, id); err != nil {
		return err
	}

	if err := s.backend.Delete(ctx, def.Resource, id); err != nil {
		return err
	}

	s.apply(ctx, def, hierarchy.Delete{ID: id}, func() error {
		err := s.repo.DeleteAccount(ctx, def.Category, id)
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil
		}
		return err
	})
	return nil
}

// UpdateStatus changes the status of many records of any backend resource
func (s *AccountService) UpdateStatus(ctx context.Context, resource string, req models.StatusUpdateRequest) ([]models.StatusOutcome, error) {
	if strings.TrimSpace(resource) == "" {
		return nil, fmt.Errorf("%w: resource is required", ErrInvalidInput)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	outcomes := s.backend.UpdateStatus(ctx, resource, req.IDs, req.Status)

	failed := 0
	for _, o := range outcomes {
		if !o.OK {
			failed++
		}
	}
	s.logger.WithFields(logrus.Fields{
		"resource": resource,
		"total":    len(outcomes),
		"failed":   failed,
	}).Info("bulk status update")

	for _, def := range s.categories {
		if def.Resource == resource {
			cache.Invalidate(def.Category)
		}
	}
	return outcomes, nil
}

// lockCategory takes the write lock of a category and returns its release
func (s *AccountService) lockCategory(c models.Category) func() {
	s.mu.Lock()
	l, ok := s.writes[c]
	if !ok {
		l = &sync.Mutex{}
		s.writes[c] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func isHeaderKey(def models.CategoryDef, key string) bool {
	return key == hierarchy.NodeKey(models.NewCategoryNode(def))
}

// lookup finds a persisted account in the current forest
func (s *AccountService) lookup(ctx context.Context, def models.CategoryDef, id string) (models.Account, error) {
	if strings.TrimSpace(id) == "" {
		return models.Account{}, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	st, err := s.load(ctx, def)
	if err != nil {
		return models.Account{}, err
	}
	account, ok := st.forest.Get(id)
	if !ok {
		return models.Account{}, fmt.Errorf("account %s: %w", id, hierarchy.ErrNodeNotFound)
	}
	return account, nil
}

// load returns the current state of a category, refetching when the cache
// no longer holds its accounts
func (s *AccountService) load(ctx context.Context, def models.CategoryDef) (*state, error) {
	accounts, ok := cache.GetAccounts(def.Category)
	if !ok {
		return s.refresh(ctx, def)
	}

	forest, orphans := hierarchy.NewForest(accounts)
	s.warnOrphans(def, orphans)
	st := &state{forest: forest}

	s.mu.Lock()
	s.states[def.Category] = st
	s.mu.Unlock()
	return st, nil
}

// refresh fetches a category from the backend. When the backend fails, the
// last stored snapshot is used and the state is marked stale.
func (s *AccountService) refresh(ctx context.Context, def models.CategoryDef) (*state, error) {
	log := s.logger.WithField("category", def.Category)
	start := time.Now()

	accounts, err := s.backend.ListAll(ctx, def.Resource)
	stale := false
	if err != nil {
		if st := s.pendingState(def.Category); st != nil {
			log.WithError(err).Warn("backend list failed, keeping locally applied changes")
			return st, nil
		}
		snap, snapErr := s.repo.GetSnapshot(ctx, def.Category)
		if snapErr != nil {
			log.WithError(err).Error("backend list failed and no snapshot is stored")
			return nil, err
		}
		log.WithError(err).WithField("snapshot_at", snap.RefreshedAt).Warn("backend list failed, serving stored snapshot")
		accounts = snap.Accounts
		stale = true
	} else {
		if err := s.repo.ReplaceAccounts(ctx, def.Category, accounts); err != nil {
			log.WithError(err).Warn("storing snapshot failed")
		}
		cache.SetAccounts(def.Category, accounts)
	}

	forest, orphans := hierarchy.NewForest(accounts)
	s.warnOrphans(def, orphans)
	st := &state{forest: forest, stale: stale}

	s.mu.Lock()
	s.states[def.Category] = st
	s.mu.Unlock()

	log.WithFields(logrus.Fields{
		"accounts": forest.Len(),
		"stale":    stale,
		"elapsed":  time.Since(start).String(),
	}).Debug("category loaded")
	return st, nil
}

// apply runs action against the current forest after the backend accepted a
// change, stores it in the snapshot, drops the cached list and refetches.
func (s *AccountService) apply(ctx context.Context, def models.CategoryDef, action hierarchy.Action, persist func() error) {
	log := s.logger.WithField("category", def.Category)

	s.mu.Lock()
	if st, ok := s.states[def.Category]; ok {
		next, err := hierarchy.Reduce(st.forest, action)
		if err != nil {
			log.WithError(err).Warn("local forest out of step with backend")
		} else {
			s.states[def.Category] = &state{forest: next, stale: st.stale, pending: true}
		}
	}
	s.mu.Unlock()

	if err := persist(); err != nil {
		log.WithError(err).Warn("updating snapshot failed")
	}
	cache.Invalidate(def.Category)

	if _, err := s.refresh(ctx, def); err != nil {
		log.WithError(err).Warn("refetch after mutation failed")
	}
}

// pendingState returns the locally reduced state of a category, marked
// stale, when one is waiting for a successful refetch
func (s *AccountService) pendingState(c models.Category) *state {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[c]
	if !ok || !st.pending {
		return nil
	}
	if !st.stale {
		st = &state{forest: st.forest, stale: true, pending: true}
		s.states[c] = st
	}
	return st
}

func (s *AccountService) warnOrphans(def models.CategoryDef, orphans []models.Account) {
	if len(orphans) == 0 {
		return
	}
	ids := make([]string, 0, len(orphans))
	for _, o := range orphans {
		ids = append(ids, o.ID)
	}
	s.logger.WithFields(logrus.Fields{
		"category": def.Category,
		"orphans":  ids,
	}).Warn("accounts unreachable from any root")
}
