package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheHelper provides namespaced cache operations over one redis client.
// A helper built with a nil client degrades to a no-op cache.
type CacheHelper struct {
	client *redis.Client
	prefix string
}

// NewCacheHelper creates a new cache helper instance
func NewCacheHelper(client *redis.Client, prefix string) *CacheHelper {
	return &CacheHelper{
		client: client,
		prefix: prefix,
	}
}

// CacheConfig defines cache configuration for different data types
type CacheConfig struct {
	TTL    time.Duration
	Prefix string
}

var (
	// Aggregated statistics, invalidated by version bumps on attempt completion
	StatsCacheConfig = CacheConfig{
		TTL:    5 * time.Minute,
		Prefix: "quiz:stats:",
	}

	// Revoked token ids; TTL is taken from the token's own expiry
	TokenCacheConfig = CacheConfig{
		Prefix: "quiz:revoked:",
	}
)

// Cache errors
var (
	ErrCacheNotAvailable = errors.New("cache not available")
	ErrCacheNotFound     = errors.New("cache not found")
)

// Available reports whether a redis client is configured
func (c *CacheHelper) Available() bool {
	return c != nil && c.client != nil
}

// GetCacheKey generates a cache key with prefix
func (c *CacheHelper) GetCacheKey(key string) string {
	return c.prefix + key
}

// Get retrieves and unmarshals data from cache
func (c *CacheHelper) Get(ctx context.Context, key string, dest interface{}) error {
	if !c.Available() {
		return ErrCacheNotAvailable
	}

	data, err := c.client.Get(ctx, c.GetCacheKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheNotFound
		}
		return fmt.Errorf("cache get error: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache unmarshal error: %w", err)
	}
	return nil
}

// Set marshals and stores data in cache
func (c *CacheHelper) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.Available() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}
	return c.client.Set(ctx, c.GetCacheKey(key), data, ttl).Err()
}

// SetString stores string data in cache
func (c *CacheHelper) SetString(ctx context.Context, key string, value string, ttl time.Duration) error {
	if !c.Available() {
		return nil
	}
	return c.client.Set(ctx, c.GetCacheKey(key), value, ttl).Err()
}

// Exists checks if a key exists in cache
func (c *CacheHelper) Exists(ctx context.Context, key string) (bool, error) {
	if !c.Available() {
		return false, ErrCacheNotAvailable
	}

	count, err := c.client.Exists(ctx, c.GetCacheKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("cache exists error: %w", err)
	}
	return count > 0, nil
}

// Version returns the current generation counter stored under key, 0 when unset
func (c *CacheHelper) Version(ctx context.Context, key string) (int64, error) {
	if !c.Available() {
		return 0, ErrCacheNotAvailable
	}

	raw, err := c.client.Get(ctx, c.GetCacheKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cache version error: %w", err)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("cache version corrupt: %w", err)
	}
	return v, nil
}

// BumpVersion increments generation counters. Entries written under an older
// generation are never read again and simply age out.
func (c *CacheHelper) BumpVersion(ctx context.Context, keys ...string) error {
	if !c.Available() || len(keys) == 0 {
		return nil
	}

	pipe := c.client.TxPipeline()
	for _, key := range keys {
		pipe.Incr(ctx, c.GetCacheKey(key))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache version bump error: %w", err)
	}
	return nil
}

// CacheOrExecute implements cache-aside: on a miss fetchFunc runs and its
// result is stored before returning
func (c *CacheHelper) CacheOrExecute(ctx context.Context, key string, dest interface{}, ttl time.Duration, fetchFunc func() (interface{}, error)) error {
	err := c.Get(ctx, key, dest)
	if err == nil {
		return nil
	}

	if !errors.Is(err, ErrCacheNotFound) && !errors.Is(err, ErrCacheNotAvailable) {
		slog.InfoContext(ctx, "Cache get error, proceeding to fetch", "error", err, "key", key)
	}

	value, err := fetchFunc()
	if err != nil {
		return err
	}

	if err := c.Set(ctx, key, value, ttl); err != nil {
		slog.ErrorContext(ctx, "Cache set error", "error", err, "key", key)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal result error: %w", err)
	}
	return json.Unmarshal(data, dest)
}

// CacheManager groups the cache namespaces the service uses
type CacheManager struct {
	client *redis.Client

	Stats  *CacheHelper
	Tokens *CacheHelper
}

// NewCacheManager creates cache manager with all cache helpers; client may be nil
func NewCacheManager(client *redis.Client) *CacheManager {
	return &CacheManager{
		client: client,
		Stats:  NewCacheHelper(client, StatsCacheConfig.Prefix),
		Tokens: NewCacheHelper(client, TokenCacheConfig.Prefix),
	}
}

// HealthCheck verifies cache connectivity
func (cm *CacheManager) HealthCheck(ctx context.Context) error {
	if cm.client == nil {
		return ErrCacheNotAvailable
	}

	if err := cm.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache health check failed: %w", err)
	}
	return nil
}
