package ratelimit

import (
	"context"
	"sync"
	"time"
)

// idleEviction is how long a key's bucket may sit untouched before a
// sweep removes it.
const idleEviction = 10 * time.Minute

// sweepEvery bounds how often Allow pays the cost of a full map sweep.
const sweepEvery = time.Minute

type tokenBucket struct {
	tokens float64
	seen   time.Time
}

// MemoryLimiter is an in-memory token bucket per key.
//
// Each key refills at rate tokens per second up to burst capacity.
// Stale buckets are swept opportunistically during Allow calls, so the
// limiter needs no background goroutine and memory stays bounded.
type MemoryLimiter struct {
	rate  float64
	burst float64

	mu        sync.Mutex
	buckets   map[string]*tokenBucket
	lastSweep time.Time
}

// NewMemoryLimiter creates a token bucket limiter with the given
// sustained rate (requests per second per key) and burst capacity.
func NewMemoryLimiter(rate float64, burst int) *MemoryLimiter {
	return &MemoryLimiter{
		rate:      rate,
		burst:     float64(burst),
		buckets:   make(map[string]*tokenBucket),
		lastSweep: time.Now(),
	}
}

// Allow consumes one token from the bucket for key. It returns true when a
// token was available and false when the caller should be rejected.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if now.Sub(m.lastSweep) > sweepEvery {
		m.sweepLocked(now)
	}

	b, ok := m.buckets[key]
	if !ok {
		// New key starts with a full bucket minus the token being spent.
		m.buckets[key] = &tokenBucket{tokens: m.burst - 1, seen: now}
		return true, nil
	}

	b.tokens += now.Sub(b.seen).Seconds() * m.rate
	if b.tokens > m.burst {
		b.tokens = m.burst
	}
	b.seen = now

	if b.tokens < 1 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

// Close is a no-op; the limiter holds no background resources.
func (m *MemoryLimiter) Close() error { return nil }

func (m *MemoryLimiter) sweepLocked(now time.Time) {
	cutoff := now.Add(-idleEviction)
	for key, b := range m.buckets {
		if b.seen.Before(cutoff) {
			delete(m.buckets, key)
		}
	}
	m.lastSweep = now
}
