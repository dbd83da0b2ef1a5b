// Package ratelimit provides a pluggable rate limiting interface.
//
// The default implementation is an in-memory token bucket keyed per
// caller. Multi-instance deployments can substitute a shared backend;
// the Limiter interface is the contract.
package ratelimit

import "context"

// Limiter decides whether a request identified by key should be allowed.
// Implementations must be safe for concurrent use.
type Limiter interface {
	// Allow returns true if the request should proceed. The key is
	// opaque; callers construct it (e.g. "user:alice" or "ip:1.2.3.4").
	// Errors signal a limiter malfunction and callers should fail open.
	Allow(ctx context.Context, key string) (bool, error)

	// Close releases any resources held by the limiter.
	Close() error
}

// NoopLimiter permits every request. Used when rate limiting is disabled.
type NoopLimiter struct{}

// Allow always returns true.
func (NoopLimiter) Allow(context.Context, string) (bool, error) { return true, nil }

// Close is a no-op.
func (NoopLimiter) Close() error { return nil }
