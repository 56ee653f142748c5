package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/zms-erp/ledgertree/models"
)

// Cache drivers accepted by Initialize
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverDynamoDB = "dynamodb"
)

// DefaultTTL is the lifetime of a cached account list
const DefaultTTL = 5 * time.Minute

var (
	provider CacheProvider
	once     sync.Once
	mu       sync.RWMutex
)

// CacheProvider defines the interface for cache implementations.
// It caches the flat account list of each category between backend fetches.
type CacheProvider interface {
	// GetAccounts retrieves the account list of a category if cached.
	// Returns:
	//   - The cached accounts in backend order
	//   - A boolean indicating whether the list was found and is still fresh
	GetAccounts(category models.Category) ([]models.Account, bool)

	// SetAccounts stores the account list of a category.
	SetAccounts(category models.Category, accounts []models.Account)

	// Invalidate removes the cached list of one category.
	// This is called after every mutation of that category.
	Invalidate(category models.Category)

	// InvalidateCache removes all cached data.
	InvalidateCache()

	// SetCacheTTL sets the cache time-to-live duration.
	SetCacheTTL(ttl time.Duration)

	// Initialize performs any necessary setup for the cache provider.
	// This may include establishing connections or creating tables.
	Initialize() error
}

// Initialize sets up the cache provider for driver.
// Only the first call has an effect until ResetProvider.
func Initialize(driver string) error {
	var err error
	once.Do(func() {
		var p CacheProvider
		switch driver {
		case DriverRedis:
			p = NewRedisCache()
		case DriverDynamoDB:
			p, err = NewDynamoDBCache()
		case DriverMemory, "":
			p = NewMemoryCache()
		default:
			err = fmt.Errorf("unknown cache driver %q", driver)
		}
		if err != nil {
			return
		}
		if err = p.Initialize(); err != nil {
			return
		}
		mu.Lock()
		provider = p
		mu.Unlock()
	})
	return err
}

// GetAccounts retrieves the account list of a category if cached
func GetAccounts(category models.Category) ([]models.Account, bool) {
	mu.RLock()
	defer mu.RUnlock()
	if provider == nil {
		return nil, false
	}
	return provider.GetAccounts(category)
}

// SetAccounts stores the account list of a category
func SetAccounts(category models.Category, accounts []models.Account) {
	mu.Lock()
	defer mu.Unlock()
	if provider == nil {
		return
	}
	provider.SetAccounts(category, accounts)
}

// Invalidate removes the cached list of one category
func Invalidate(category models.Category) {
	mu.Lock()
	defer mu.Unlock()
	if provider == nil {
		return
	}
	provider.Invalidate(category)
}

// InvalidateCache removes all cached data
func InvalidateCache() {
	mu.Lock()
	defer mu.Unlock()
	if provider == nil {
		return
	}
	provider.InvalidateCache()
}

// SetCacheTTL sets the cache time-to-live duration
func SetCacheTTL(ttl time.Duration) {
	mu.Lock()
	defer mu.Unlock()
	if provider == nil {
		return
	}
	provider.SetCacheTTL(ttl)
}

// SetProvider allows changing the cache provider at runtime
func SetProvider(p CacheProvider) error {
	mu.Lock()
	defer mu.Unlock()
	if err := p.Initialize(); err != nil {
		return err
	}
	provider = p
	return nil
}

// ResetProvider resets the cache provider for testing
func ResetProvider() {
	mu.Lock()
	defer mu.Unlock()
	provider = nil
	once = sync.Once{}
}

func cacheKey(category models.Category) string {
	return "accounts:" + string(category)
}

func copyAccounts(accounts []models.Account) []models.Account {
	if accounts == nil {
		return []models.Account{}
	}
	return models.NormalizeAccounts(accounts)
}
