// Package ratelimit bounds login attempts per (client origin, identity) pair using a
// sliding window. Every attempt is counted, successful or not, so a correct password
// submitted after the threshold is still rejected until the window drains.
package ratelimit

import (
	"context"
	"net"
	"strings"
	"time"
)

const (
	DefaultMaxAttempts = 5
	DefaultWindow      = 5 * time.Minute
)

// Limiter records an attempt for key and reports whether the key is over its budget.
type Limiter interface {
	IsRateLimited(ctx context.Context, key string) bool
}

// ClientOrigin prefers the first hop of X-Forwarded-For and falls back to the connection address.
// Forwarded headers are client controlled unless a trusted proxy rewrites them.
func ClientOrigin(forwardedFor, remoteAddr string) string {
	if forwardedFor != "" {
		first := strings.TrimSpace(strings.Split(forwardedFor, ",")[0])
		if first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil && host != "" {
		return host
	}
	if remoteAddr != "" {
		return remoteAddr
	}
	return "unknown"
}

// Key combines an origin and an identity into a limiter key.
func Key(origin, identity string) string {
	return origin + "|" + strings.ToLower(strings.TrimSpace(identity))
}
