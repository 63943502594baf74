package ratelimit

import (
	"context"
	"sync"
)

// Bucket is a handle bound to one logical bucket in the store. It holds no
// token state itself, so a cached handle never goes stale.
type Bucket struct {
	key      string
	storeKey string
	tier     BucketConfiguration
	store    BucketStore
}

func (b *Bucket) Key() string {
	return b.key
}

func (b *Bucket) Tier() BucketConfiguration {
	return b.tier
}

// TryConsume charges tokens against every bandwidth of the tier, or none.
func (b *Bucket) TryConsume(ctx context.Context, tokens int64) (ConsumeResult, error) {
	return b.store.TryConsume(ctx, b.storeKey, b.tier, tokens)
}

// AvailableTokens reports the smallest token count across bandwidths.
func (b *Bucket) AvailableTokens(ctx context.Context) (int64, error) {
	res, err := b.store.TryConsume(ctx, b.storeKey, b.tier, 0)
	if err != nil {
		return 0, err
	}
	return res.Remaining, nil
}

// storeKey namespaces the bucket key by tier, so a key limited under two
// tiers is two independent buckets.
func storeKey(tier, key string) string {
	return tier + ":" + key
}

// BucketCache maps bucket keys to handles for this process. Concurrent first
// access to one key yields a single handle.
type BucketCache struct {
	store BucketStore

	mu      sync.Mutex
	buckets map[string]*Bucket
}

func NewBucketCache(store BucketStore) *BucketCache {
	return &BucketCache{
		store:   store,
		buckets: make(map[string]*Bucket),
	}
}

// Resolve returns the handle for key under tier, creating it on first use.
func (c *BucketCache) Resolve(key string, tier BucketConfiguration) *Bucket {
	sk := storeKey(tier.Name, key)

	c.mu.Lock()
	defer c.mu.Unlock()

	if b, ok := c.buckets[sk]; ok {
		return b
	}
	b := &Bucket{
		key:      key,
		storeKey: sk,
		tier:     tier,
		store:    c.store,
	}
	c.buckets[sk] = b
	return b
}

// Clear drops every handle and reports how many were held. Bucket state in
// the store is untouched.
func (c *BucketCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.buckets)
	c.buckets = make(map[string]*Bucket)
	return n
}

func (c *BucketCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buckets)
}
