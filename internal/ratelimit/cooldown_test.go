package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisCooldown(t *testing.T) (*RedisCooldown, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewRedisCooldown(rdb, "test:"), mr
}

func TestRedisCooldown(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCooldown(t)

	ok, _, err := c.Reserve(ctx, "otp:a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("test:otp:a"))

	ok, wait, err := c.Reserve(ctx, "otp:a", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))
	assert.LessOrEqual(t, wait, time.Minute)

	ok, _, err = c.Reserve(ctx, "otp:b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "keys are independent")

	mr.FastForward(time.Minute)
	ok, _, err = c.Reserve(ctx, "otp:a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "window reopens after the period")
}

func TestRedisCooldownUnavailable(t *testing.T) {
	c, mr := newRedisCooldown(t)
	mr.Close()

	_, _, err := c.Reserve(context.Background(), "otp:a", time.Minute)
	assert.ErrorIs(t, err, ErrCooldownUnavailable)
}

func TestMemoryCooldown(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCooldown(func() time.Time { return now })
	ctx := context.Background()

	ok, _, err := c.Reserve(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(20 * time.Second)
	ok, wait, err := c.Reserve(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 40*time.Second, wait)

	now = now.Add(40 * time.Second)
	ok, _, err = c.Reserve(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expiry is exclusive of the window end")
}
