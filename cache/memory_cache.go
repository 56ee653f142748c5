package cache

import (
	"sync"
	"time"

	"github.com/zms-erp/ledgertree/models"
)

// MemoryCache implements CacheProvider using in-memory storage
type MemoryCache struct {
	mu       sync.RWMutex
	data     map[models.Category][]models.Account
	ttl      time.Duration
	expiries map[models.Category]time.Time
}

// NewMemoryCache creates a new in-memory cache provider
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		ttl:      DefaultTTL,
		data:     make(map[models.Category][]models.Account),
		expiries: make(map[models.Category]time.Time),
	}
}

// Initialize performs any necessary setup for the cache provider
func (c *MemoryCache) Initialize() error {
	return nil
}

// GetAccounts retrieves the account list of a category if cached
func (c *MemoryCache) GetAccounts(category models.Category) ([]models.Account, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	expiry, exists := c.expiries[category]
	if !exists || time.Now().After(expiry) {
		return nil, false
	}

	if accounts, ok := c.data[category]; ok {
		return copyAccounts(accounts), true
	}

	return nil, false
}

// SetAccounts stores the account list of a category
func (c *MemoryCache) SetAccounts(category models.Category, accounts []models.Account) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[category] = copyAccounts(accounts)
	c.expiries[category] = time.Now().Add(c.ttl)
}

// Invalidate removes the cached list of one category
func (c *MemoryCache) Invalidate(category models.Category) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.data, category)
	delete(c.expiries, category)
}

// InvalidateCache removes all cached data
func (c *MemoryCache) InvalidateCache() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = make(map[models.Category][]models.Account)
	c.expiries = make(map[models.Category]time.Time)
}

// SetCacheTTL sets the cache time-to-live duration
func (c *MemoryCache) SetCacheTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ttl = ttl
	// Update all existing expiries
	now := time.Now()
	for key := range c.data {
		c.expiries[key] = now.Add(ttl)
	}
}
