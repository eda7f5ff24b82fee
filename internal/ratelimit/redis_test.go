package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedisLimiterFallsBackWhenRedisIsDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	fallback := NewMemoryLimiter(2, time.Minute)
	limiter := NewRedisLimiter(client, 2, time.Minute, fallback, zap.NewNop())
	ctx := context.Background()

	assert.False(t, limiter.IsRateLimited(ctx, "k"))
	assert.False(t, limiter.IsRateLimited(ctx, "k"))
	assert.True(t, limiter.IsRateLimited(ctx, "k"))
	assert.Equal(t, 1, fallback.Len())
}

func newMiniredisLimiter(t *testing.T) (*RedisLimiter, *miniredis.Miniredis, *fakeClock) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := newClock()
	limiter := NewRedisLimiter(client, 5, 5*time.Minute, nil, zap.NewNop())
	limiter.now = clock.Now
	return limiter, mr, clock
}

func TestRedisLimiterSlidingWindow(t *testing.T) {
	limiter, _, clock := newMiniredisLimiter(t)
	ctx := context.Background()
	key := Key("10.0.0.1", "partner@example.com")

	for i := 0; i < 5; i++ {
		assert.False(t, limiter.IsRateLimited(ctx, key), "attempt %d should pass", i+1)
	}
	assert.True(t, limiter.IsRateLimited(ctx, key), "6th attempt within the window is rejected")

	clock.Advance(5*time.Minute + time.Second)
	assert.False(t, limiter.IsRateLimited(ctx, key), "attempt after the window is accepted")
}

func TestRedisLimiterRecordsRejectedAttempts(t *testing.T) {
	limiter, mr, clock := newMiniredisLimiter(t)
	ctx := context.Background()
	key := Key("10.0.0.1", "Partner@Example.com")

	for i := 0; i < 7; i++ {
		limiter.IsRateLimited(ctx, key)
		clock.Advance(30 * time.Second)
	}
	members, err := mr.ZMembers(redisKeyPrefix + Key("10.0.0.1", "partner@example.com"))
	require.NoError(t, err)
	assert.Len(t, members, 7)
	assert.True(t, mr.Exists(redisKeyPrefix+key))

	// The first attempts age out one by one, but the rejected ones keep the key over budget.
	clock.Advance(2 * time.Minute)
	assert.True(t, limiter.IsRateLimited(ctx, key))
}

func TestRedisLimiterKeysAreIndependent(t *testing.T) {
	limiter, _, _ := newMiniredisLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		limiter.IsRateLimited(ctx, Key("10.0.0.1", "a@example.com"))
	}
	assert.True(t, limiter.IsRateLimited(ctx, Key("10.0.0.1", "a@example.com")))
	assert.False(t, limiter.IsRateLimited(ctx, Key("10.0.0.2", "a@example.com")))
	assert.False(t, limiter.IsRateLimited(ctx, Key("10.0.0.1", "b@example.com")))
}
