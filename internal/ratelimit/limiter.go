// Package ratelimit implements per-credential token buckets for the
// ledger endpoints.
package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	mu       sync.Mutex
	tokens   float64
	lastFill time.Time
	lastSeen time.Time
}

// Limiter hands out request tokens per key. Each key gets its own
// bucket with the configured capacity, refilled at rate tokens per
// second. Buckets start full so a fresh credential can burst.
type Limiter struct {
	mu       sync.RWMutex
	buckets  map[string]*bucket
	capacity float64
	rate     float64
	now      func() time.Time
}

// New builds a limiter allowing bursts of capacity requests refilled
// at rate requests per second.
func New(capacity int, rate float64) *Limiter {
	return &Limiter{
		buckets:  make(map[string]*bucket),
		capacity: float64(capacity),
		rate:     rate,
		now:      time.Now,
	}
}

func (l *Limiter) bucketFor(key string) *bucket {
	l.mu.RLock()
	b, ok := l.buckets[key]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok = l.buckets[key]; ok {
		return b
	}
	now := l.now()
	b = &bucket{tokens: l.capacity, lastFill: now, lastSeen: now}
	l.buckets[key] = b
	return b
}

// Allow consumes one token for the key. When the bucket is empty it
// returns false and the wait until the next token becomes available.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	b := l.bucketFor(key)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := l.now()
	b.lastSeen = now

	elapsed := now.Sub(b.lastFill).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * l.rate
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.lastFill = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}

	wait := time.Duration((1 - b.tokens) / l.rate * float64(time.Second))
	return false, wait
}

// PruneIdle drops buckets untouched for at least idle, bounding memory
// when credentials churn.
func (l *Limiter) PruneIdle(idle time.Duration) int {
	cutoff := l.now().Add(-idle)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, b := range l.buckets {
		b.mu.Lock()
		stale := b.lastSeen.Before(cutoff)
		b.mu.Unlock()
		if stale {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}
