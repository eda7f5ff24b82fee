package ratelimit

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

const memoryCleanupPeriod = 5 * time.Minute

// MemoryLimiter keeps attempt timestamps in process memory. Counters are lost on restart
// and are not shared between instances.
type MemoryLimiter struct {
	attempts    *xsync.MapOf[string, []time.Time]
	maxAttempts int
	window      time.Duration
	now         func() time.Time
	lastCleanup atomic.Int64
}

// Option customizes a MemoryLimiter.
type Option func(*MemoryLimiter)

// WithClock overrides the limiter clock.
func WithClock(now func() time.Time) Option {
	return func(l *MemoryLimiter) {
		if now != nil {
			l.now = now
		}
	}
}

// NewMemoryLimiter creates a limiter allowing maxAttempts per window.
func NewMemoryLimiter(maxAttempts int, window time.Duration, opts ...Option) *MemoryLimiter {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if window <= 0 {
		window = DefaultWindow
	}
	l := &MemoryLimiter{
		attempts:    xsync.NewMapOf[string, []time.Time](),
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastCleanup.Store(l.now().UnixNano())
	return l
}

// IsRateLimited prunes attempts older than the window, records this one and reports
// whether the remaining count exceeds the threshold.
func (l *MemoryLimiter) IsRateLimited(_ context.Context, key string) bool {
	now := l.now()

	var count int
	l.attempts.Compute(key, func(old []time.Time, _ bool) ([]time.Time, bool) {
		recent := l.prune(old, now)
		recent = append(recent, now)
		count = len(recent)
		return recent, false
	})

	l.cleanup(now)
	return count > l.maxAttempts
}

// Len returns the number of tracked keys.
func (l *MemoryLimiter) Len() int {
	return l.attempts.Size()
}

func (l *MemoryLimiter) prune(attempts []time.Time, now time.Time) []time.Time {
	recent := make([]time.Time, 0, len(attempts)+1)
	for _, ts := range attempts {
		if now.Sub(ts) < l.window {
			recent = append(recent, ts)
		}
	}
	return recent
}

// cleanup drops keys whose attempts all fell out of the window.
func (l *MemoryLimiter) cleanup(now time.Time) {
	last := l.lastCleanup.Load()
	if now.UnixNano()-last < int64(memoryCleanupPeriod) {
		return
	}
	if !l.lastCleanup.CompareAndSwap(last, now.UnixNano()) {
		return
	}

	l.attempts.Range(func(key string, _ []time.Time) bool {
		l.attempts.Compute(key, func(old []time.Time, loaded bool) ([]time.Time, bool) {
			recent := l.prune(old, now)
			return recent, !loaded || len(recent) == 0
		})
		return true
	})
}
