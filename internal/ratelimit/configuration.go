// Package ratelimit provides distributed, tiered token-bucket rate limiting.
//
// A bucket is identified by a key derived from a Policy and the caller's
// request details. Its state lives in a shared BucketStore so that every
// instance of the service draws from the same tokens. A bucket enforces all
// bandwidths of its tier at once: a request is admitted only when every
// bandwidth has enough tokens, and then every bandwidth is charged.
package ratelimit

import (
	"fmt"
	"productservice/internal/models"
	"time"
)

// Bandwidth is one capacity and refill period pair. Tokens refill greedily:
// capacity/period tokens per unit of time, continuously, never above capacity.
type Bandwidth struct {
	Capacity int64
	Period   time.Duration
}

// BucketConfiguration is a named, immutable tier of bandwidths.
type BucketConfiguration struct {
	Name       string
	Bandwidths []Bandwidth
}

// LongestPeriod is how long an idle bucket must be kept before the store may
// reclaim it; after that long every bandwidth is full again anyway.
func (c BucketConfiguration) LongestPeriod() time.Duration {
	var longest time.Duration
	for _, bw := range c.Bandwidths {
		if bw.Period > longest {
			longest = bw.Period
		}
	}
	return longest
}

func (c BucketConfiguration) validate() error {
	if len(c.Bandwidths) == 0 {
		return &ConfigurationError{Reason: fmt.Sprintf("tier %q has no bandwidths", c.Name)}
	}
	for i, bw := range c.Bandwidths {
		if bw.Capacity <= 0 || bw.Period <= 0 {
			return &ConfigurationError{Reason: fmt.Sprintf("tier %q bandwidth %d must have positive capacity and period", c.Name, i)}
		}
	}
	return nil
}

// Registry holds the tiers loaded at startup. It is read-only after
// construction and safe for concurrent use.
type Registry struct {
	tiers map[string]BucketConfiguration
}

// NewRegistry builds a registry from the rate limit configuration.
func NewRegistry(cfg models.RateLimitConfig) (*Registry, error) {
	r := &Registry{tiers: make(map[string]BucketConfiguration, len(cfg.Tiers))}
	for _, name := range cfg.TierNames() {
		tier := BucketConfiguration{Name: name}
		for _, bw := range cfg.Tiers[name] {
			tier.Bandwidths = append(tier.Bandwidths, Bandwidth{Capacity: bw.Capacity, Period: bw.Period})
		}
		if err := tier.validate(); err != nil {
			return nil, err
		}
		r.tiers[name] = tier
	}
	return r, nil
}

// Get returns the named tier.
func (r *Registry) Get(name string) (BucketConfiguration, bool) {
	tier, ok := r.tiers[name]
	return tier, ok
}

func (r *Registry) Len() int {
	return len(r.tiers)
}
