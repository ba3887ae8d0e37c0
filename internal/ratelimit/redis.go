package ratelimit

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindowScript trims expired members, counts the window and adds the
// call when it fits. KEYS are the window set and its member counter.
// Returns {allowed, remaining, retry_ms}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local seqKey = KEYS[2]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)

if count < limit then
	local seq = redis.call('INCR', seqKey)
	redis.call('ZADD', key, now, now .. ':' .. seq)
	redis.call('PEXPIRE', key, window + 1000)
	redis.call('PEXPIRE', seqKey, window + 1000)
	return {1, limit - count - 1, 0}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local retry = window
if oldest[2] then
	retry = tonumber(oldest[2]) + window - now
end
return {0, 0, retry}
`)

// RedisStore shares quotas across processes using a sorted set per key.
// When Redis is unreachable it falls back to a local MemoryStore.
type RedisStore struct {
	client   *redis.Client
	prefix   string
	fallback *MemoryStore
	logger   *slog.Logger
}

// NewRedisStore creates a store whose keys are namespaced under prefix.
func NewRedisStore(client *redis.Client, prefix string, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix == "" {
		prefix = "whatnow:quota:"
	}
	return &RedisStore{
		client:   client,
		prefix:   prefix,
		fallback: NewMemoryStore(),
		logger:   logger,
	}
}

// Allow implements Store.
func (s *RedisStore) Allow(ctx context.Context, key string, limit Limit) (bool, int, time.Duration) {
	now := time.Now().UnixMilli()
	res, err := slidingWindowScript.Run(ctx, s.client, s.windowKeys(key),
		strconv.FormatInt(now, 10),
		strconv.FormatInt(limit.Window.Milliseconds(), 10),
		strconv.Itoa(limit.Calls),
	).Int64Slice()
	if err != nil || len(res) != 3 {
		s.logger.Warn("redis quota check failed, using local window",
			slog.String("key", key),
			slog.Any("error", err),
		)
		return s.fallback.Allow(ctx, key, limit)
	}
	return res[0] == 1, int(res[1]), time.Duration(res[2]) * time.Millisecond
}

// windowKeys returns the window set and counter keys for key. Both share a
// hash tag so they land in the same cluster slot.
func (s *RedisStore) windowKeys(key string) []string {
	tagged := "{" + s.prefix + key + "}"
	return []string{tagged, tagged + ":seq"}
}
