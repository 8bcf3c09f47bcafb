package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// compare-and-delete so a lock whose TTL lapsed is never released by its former owner
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a cross-instance Locker built on SET NX PX
type RedisLocker struct {
	client     *redis.Client
	prefix     string
	ttl        time.Duration
	retries    int
	retryDelay time.Duration
	logger     *slog.Logger
}

type RedisLockerConfig struct {
	Prefix     string
	TTL        time.Duration
	Retries    int
	RetryDelay time.Duration
}

func NewRedisLocker(client *redis.Client, cfg RedisLockerConfig, logger *slog.Logger) *RedisLocker {
	if cfg.Prefix == "" {
		cfg.Prefix = "quiz:lock:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Second
	}
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	return &RedisLocker{
		client:     client,
		prefix:     cfg.Prefix,
		ttl:        cfg.TTL,
		retries:    cfg.Retries,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}
}

func (r *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	fullKey := r.prefix + key
	token := uuid.NewString()

	for attempt := 0; attempt < r.retries; attempt++ {
		ok, err := r.client.SetNX(ctx, fullKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			return func() { r.release(fullKey, token) }, nil
		}

		if attempt == r.retries-1 {
			break
		}
		select {
		case <-time.After(r.retryDelay):
		case <-ctx.Done():
			return nil, errors.Join(ErrLockNotAcquired, ctx.Err())
		}
	}
	return nil, ErrLockNotAcquired
}

func (r *RedisLocker) release(fullKey, token string) {
	// the caller's context may already be cancelled; release must still run
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := unlockScript.Run(ctx, r.client, []string{fullKey}, token).Err(); err != nil {
		r.logger.Warn("Failed to release lock", "key", fullKey, "error", err)
	}
}
