package ratelimit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "ratelimit:login:"

// slidingWindowScript mirrors MemoryLimiter: prune, always record, return the count.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local member = ARGV[3]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, window)

return redis.call('ZCARD', key)
`)

// RedisLimiter shares attempt counters between instances through a Redis sorted set.
type RedisLimiter struct {
	client      *redis.Client
	maxAttempts int
	window      time.Duration
	fallback    Limiter
	logger      *zap.Logger
	now         func() time.Time
}

// NewRedisLimiter builds a Redis-backed limiter. When Redis fails the fallback decides.
func NewRedisLimiter(client *redis.Client, maxAttempts int, window time.Duration, fallback Limiter, logger *zap.Logger) *RedisLimiter {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if fallback == nil {
		fallback = NewMemoryLimiter(maxAttempts, window)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLimiter{
		client:      client,
		maxAttempts: maxAttempts,
		window:      window,
		fallback:    fallback,
		logger:      logger,
		now:         time.Now,
	}
}

// IsRateLimited records the attempt in Redis and reports whether the key is over budget.
func (l *RedisLimiter) IsRateLimited(ctx context.Context, key string) bool {
	now := l.now().UnixMilli()
	count, err := slidingWindowScript.Run(ctx, l.client,
		[]string{redisKeyPrefix + key},
		now,
		l.window.Milliseconds(),
		uuid.NewString(),
	).Int64()
	if err != nil {
		l.logger.Warn("redis login rate limit failed, using in-memory limiter", zap.Error(err))
		return l.fallback.IsRateLimited(ctx, key)
	}
	return count > int64(l.maxAttempts)
}
