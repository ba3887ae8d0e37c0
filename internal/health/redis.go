// Package health provides health check implementations for external dependencies.
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPingTimeout bounds a single dependency probe.
const DefaultPingTimeout = 2 * time.Second

// RedisChecker reports whether the Redis instance backing the result cache
// and shared call quotas answers PING.
type RedisChecker struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client, timeout: DefaultPingTimeout}
}

// Name identifies the dependency in health responses.
func (r *RedisChecker) Name() string { return "redis" }

// HealthCheck sends PING, bounded by the checker timeout.
func (r *RedisChecker) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
