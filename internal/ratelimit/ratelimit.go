// Package ratelimit implements the token-bucket rate limiter of
// spec.md §4.C: a float token count refilled continuously at a fixed
// rate, with one bucket per client identity.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// Bucket is a single token bucket. All operations are serialized under
// mu; refill math is applied lazily on every call rather than via a
// background ticker.
type Bucket struct {
	mu         sync.Mutex
	capacity   float64
	refillRate float64 // tokens per second
	tokens     float64
	lastRefill time.Time
}

func NewBucket(capacity float64, refillRate float64) *Bucket {
	return &Bucket{
		capacity:   capacity,
		refillRate: refillRate,
		tokens:     capacity,
		lastRefill: time.Now(),
	}
}

// refill must be called with mu held.
func (b *Bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = math.Min(b.capacity, b.tokens+elapsed*b.refillRate)
	b.lastRefill = now
}

// TryAcquire refills, then takes n tokens if available without blocking.
func (b *Bucket) TryAcquire(n float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(time.Now())
	if b.tokens >= n {
		b.tokens -= n
		return true
	}
	return false
}

// Acquire blocks, sleeping between attempts, until n tokens are
// available or ctx is cancelled.
func (b *Bucket) Acquire(ctx context.Context, n float64) error {
	for {
		if b.TryAcquire(n) {
			return nil
		}

		b.mu.Lock()
		deficit := n - b.tokens
		wait := time.Duration(deficit / b.refillRate * float64(time.Second))
		b.mu.Unlock()
		if wait <= 0 {
			wait = time.Millisecond
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Remaining returns the floor of tokens after a fresh refill.
func (b *Bucket) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill(time.Now())
	return int(math.Floor(b.tokens))
}

// Config parametrizes buckets created by a Registry.
type Config struct {
	Capacity   float64
	RefillRate float64 // tokens per second
}

// PerMinute builds a Config whose capacity equals requestsPerMinute and
// whose refill rate replenishes the full capacity once per minute —
// the shape the §4.J rate-limit middleware needs for its
// requests-per-minute semantics.
func PerMinute(requestsPerMinute int) Config {
	return Config{
		Capacity:   float64(requestsPerMinute),
		RefillRate: float64(requestsPerMinute) / 60.0,
	}
}

// Registry is the process-wide per-client-identity bucket table
// referenced by spec.md §5's shared-state list: one bucket per API-key
// prefix or remote address, constructed lazily and kept for the life of
// the process.
type Registry struct {
	mu      sync.Mutex
	buckets map[string]*Bucket
	cfg     Config
}

func NewRegistry(cfg Config) *Registry {
	return &Registry{buckets: make(map[string]*Bucket), cfg: cfg}
}

func (r *Registry) Get(identity string) *Bucket {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.buckets[identity]; ok {
		return b
	}
	b := NewBucket(r.cfg.Capacity, r.cfg.RefillRate)
	r.buckets[identity] = b
	return b
}

// Count reports how many distinct identities currently have a bucket.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buckets)
}
