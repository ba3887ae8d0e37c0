package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// RedisCache shares results across instances. Redis errors are logged and
// reported as misses.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

// NewRedisCache creates a RedisCache. A non-positive ttl uses DefaultTTL.
func NewRedisCache(client *redis.Client, ttl time.Duration, prefix string, logger *slog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if prefix == "" {
		prefix = "whatnow:results:"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{client: client, ttl: ttl, prefix: prefix, logger: logger}
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) (*Entry, bool) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("result cache read failed",
			slog.String("key", key),
			slog.Any("error", err),
		)
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("discarding corrupt cache entry",
			slog.String("key", key),
			slog.Any("error", err),
		)
		return nil, false
	}
	return &entry, true
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, entry *Entry) {
	if entry == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn("failed to encode cache entry",
			slog.String("key", key),
			slog.Any("error", err),
		)
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("result cache write failed",
			slog.String("key", key),
			slog.Any("error", err),
		)
	}
}
