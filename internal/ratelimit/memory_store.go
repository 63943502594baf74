package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// memoryBucket is the in-process state of one bucket.
type memoryBucket struct {
	tokens   []float64
	last     time.Time
	lastSeen time.Time
	ttl      time.Duration
}

// MemoryStore is a single-process BucketStore with the same refill
// arithmetic as RedisStore. It backs tests and single-instance deployments.
// A background goroutine drops buckets idle for longer than their tier's
// longest period.
type MemoryStore struct {
	now             Clock
	cleanupInterval time.Duration

	mu      sync.Mutex
	buckets map[string]*memoryBucket
	done    chan struct{}
	closed  bool
}

// NewMemoryStore creates a store. A nil clock means time.Now; a
// non-positive cleanup interval disables the background sweep.
func NewMemoryStore(now Clock, cleanupInterval time.Duration) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	m := &MemoryStore{
		now:             now,
		cleanupInterval: cleanupInterval,
		buckets:         make(map[string]*memoryBucket),
		done:            make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go m.cleanup()
	}
	return m
}

func (m *MemoryStore) TryConsume(_ context.Context, key string, tier BucketConfiguration, tokens int64) (ConsumeResult, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	b, exists := m.buckets[key]
	if !exists || len(b.tokens) != len(tier.Bandwidths) {
		b = &memoryBucket{tokens: make([]float64, len(tier.Bandwidths)), last: now}
		for i, bw := range tier.Bandwidths {
			b.tokens[i] = float64(bw.Capacity)
		}
		m.buckets[key] = b
	}

	cost := float64(tokens)
	allowed := true
	var wait time.Duration
	for i, bw := range tier.Bandwidths {
		b.tokens[i] = refill(bw, b.tokens[i], b.last, now)
		if b.tokens[i] < cost {
			allowed = false
			if w := waitFor(bw, cost-b.tokens[i]); w > wait {
				wait = w
			}
		}
	}

	remaining := int64(-1)
	for i := range b.tokens {
		if allowed {
			b.tokens[i] -= cost
		}
		if whole := int64(math.Floor(b.tokens[i])); remaining < 0 || whole < remaining {
			remaining = whole
		}
	}
	if now.After(b.last) {
		b.last = now
	}
	b.lastSeen = now
	b.ttl = tier.LongestPeriod()

	res := ConsumeResult{Consumed: allowed, Remaining: remaining}
	if !allowed {
		// Whole milliseconds, rounded up, to match the script.
		res.RetryAfter = (wait + time.Millisecond - 1) / time.Millisecond * time.Millisecond
	}
	return res, nil
}

// Len reports how many buckets are held.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

// Close stops the background cleanup goroutine.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

func (m *MemoryStore) cleanup() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictIdle()
		}
	}
}

// evictIdle removes buckets that have not been touched for their tier's
// longest period. Such buckets are full, so dropping them changes nothing.
func (m *MemoryStore) evictIdle() {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, b := range m.buckets {
		if now.Sub(b.lastSeen) >= b.ttl {
			delete(m.buckets, key)
		}
	}
}
