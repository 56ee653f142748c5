package cache

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/zms-erp/ledgertree/models"
)

// RedisCache implements CacheProvider using Redis
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a new Redis cache provider from REDIS_HOST,
// REDIS_PORT and REDIS_PASSWORD
func NewRedisCache() *RedisCache {
	redisHost := os.Getenv("REDIS_HOST")
	if redisHost == "" {
		redisHost = "localhost"
	}
	redisPort := os.Getenv("REDIS_PORT")
	if redisPort == "" {
		redisPort = "6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", redisHost, redisPort),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})

	return NewRedisCacheWithClient(client)
}

// NewRedisCacheWithClient creates a Redis cache provider with a custom client
func NewRedisCacheWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    DefaultTTL,
	}
}

// Initialize performs any necessary setup for the cache provider
func (c *RedisCache) Initialize() error {
	ctx := context.Background()
	_, err := c.client.Ping(ctx).Result()
	return err
}

// GetAccounts retrieves the account list of a category if cached
func (c *RedisCache) GetAccounts(category models.Category) ([]models.Account, bool) {
	ctx := context.Background()
	data, err := c.client.Get(ctx, cacheKey(category)).Bytes()
	if err != nil {
		return nil, false
	}

	var accounts []models.Account
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, false
	}

	return copyAccounts(accounts), true
}

// SetAccounts stores the account list of a category
func (c *RedisCache) SetAccounts(category models.Category, accounts []models.Account) {
	ctx := context.Background()
	data, err := json.Marshal(copyAccounts(accounts))
	if err != nil {
		return
	}

	if err := c.client.Set(ctx, cacheKey(category), data, c.ttl).Err(); err != nil {
		logrus.WithError(err).WithField("category", category).Warn("redis cache write failed")
	}
}

// Invalidate removes the cached list of one category
func (c *RedisCache) Invalidate(category models.Category) {
	ctx := context.Background()
	c.client.Del(ctx, cacheKey(category))
}

// InvalidateCache removes every cached account list
func (c *RedisCache) InvalidateCache() {
	ctx := context.Background()
	iter := c.client.Scan(ctx, 0, cacheKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		c.client.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logrus.WithError(err).Warn("redis cache scan failed")
	}
}

// SetCacheTTL sets the cache time-to-live duration
func (c *RedisCache) SetCacheTTL(ttl time.Duration) {
	c.ttl = ttl
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
