// Package ratelimit holds the resend cooldowns and the per-client request
// limits of the auth endpoints.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCooldownUnavailable = errors.New("cooldown backend unavailable")

// RedisCooldown keeps cooldown windows as expiring keys so every instance of
// the server sees the same window.
type RedisCooldown struct {
	redis  *redis.Client
	prefix string
}

func NewRedisCooldown(client *redis.Client, prefix string) *RedisCooldown {
	return &RedisCooldown{redis: client, prefix: prefix}
}

func (c *RedisCooldown) key(k string) string {
	return c.prefix + k
}

// Reserve claims key for period. When the key is already held it reports
// false and the time left on the window.
func (c *RedisCooldown) Reserve(ctx context.Context, key string, period time.Duration) (bool, time.Duration, error) {
	ok, err := c.redis.SetNX(ctx, c.key(key), 1, period).Result()
	if err != nil {
		return false, 0, fmt.Errorf("%w: %v", ErrCooldownUnavailable, err)
	}
	if ok {
		return true, 0, nil
	}

	ttl, err := c.redis.PTTL(ctx, c.key(key)).Result()
	if err != nil {
		return false, 0, fmt.Errorf("%w: %v", ErrCooldownUnavailable, err)
	}
	if ttl < 0 {
		// Key vanished or lost its expiry between the two calls.
		ttl = period
	}
	return false, ttl, nil
}

// MemoryCooldown is the single-process fallback used when no Redis address
// is configured.
type MemoryCooldown struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

func NewMemoryCooldown(now func() time.Time) *MemoryCooldown {
	if now == nil {
		now = time.Now
	}
	return &MemoryCooldown{until: make(map[string]time.Time), now: now}
}

func (c *MemoryCooldown) Reserve(_ context.Context, key string, period time.Duration) (bool, time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if until, ok := c.until[key]; ok && now.Before(until) {
		return false, until.Sub(now), nil
	}
	c.until[key] = now.Add(period)

	if len(c.until) > 1024 {
		for k, until := range c.until {
			if !now.Before(until) {
				delete(c.until, k)
			}
		}
	}
	return true, 0, nil
}
