package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"productservice/internal/models"
	"time"

	"golang.org/x/time/rate"
)

// Decision is the answer to one admission check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	BucketKey  string
	// Remaining is the smallest token count left across bandwidths, or -1
	// when the store could not be asked.
	Remaining int64
	// Degraded marks a decision taken without the store.
	Degraded bool
}

type Options struct {
	// FailOpen admits requests when the store cannot be reached.
	FailOpen bool
	// StoreTimeout bounds every store round-trip.
	StoreTimeout time.Duration
	// DefaultRetryAfter is reported when the store gives no refill time.
	DefaultRetryAfter time.Duration
	Logger            *slog.Logger
}

func OptionsFromConfig(cfg models.RateLimitConfig, logger *slog.Logger) Options {
	return Options{
		FailOpen:          cfg.FailOpen,
		StoreTimeout:      cfg.StoreTimeout,
		DefaultRetryAfter: cfg.DefaultRetryAfter,
		Logger:            logger,
	}
}

// RateLimiter answers whether an operation may run under a policy. It is
// safe for concurrent use.
type RateLimiter struct {
	registry *Registry
	buckets  *BucketCache
	opts     Options
	logger   *slog.Logger
	metrics  *limiterMetrics

	// storeWarn throttles store failure warnings during an outage.
	storeWarn rate.Sometimes
}

func NewRateLimiter(registry *Registry, store BucketStore, opts Options) (*RateLimiter, error) {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 250 * time.Millisecond
	}
	if opts.DefaultRetryAfter <= 0 {
		opts.DefaultRetryAfter = 60 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metrics, err := newLimiterMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit metrics: %w", err)
	}

	return &RateLimiter{
		registry:  registry,
		buckets:   NewBucketCache(store),
		opts:      opts,
		logger:    logger.With("component", "ratelimit"),
		metrics:   metrics,
		storeWarn: rate.Sometimes{First: 1, Interval: 30 * time.Second},
	}, nil
}

// TryConsume charges policy.Tokens to the bucket the policy resolves to.
// Store failures never surface as errors; they produce a degraded decision
// that admits or denies according to Options.FailOpen.
func (l *RateLimiter) TryConsume(ctx context.Context, policy Policy, info *RequestInfo) Decision {
	start := time.Now()
	key := ResolveKey(policy, info)

	tier, ok := l.registry.Get(policy.Tier)
	if !ok {
		// Registered policies are validated, so only a hand-built policy gets here.
		l.logger.Error("Rate limit policy references unknown tier", "tier", policy.Tier, "bucket_key", key)
		return l.degraded(ctx, policy.Tier, key, start)
	}

	bucket := l.buckets.Resolve(key, tier)

	storeCtx, cancel := context.WithTimeout(ctx, l.opts.StoreTimeout)
	defer cancel()

	res, err := bucket.TryConsume(storeCtx, policy.Tokens)
	if err != nil {
		l.storeWarn.Do(func() {
			l.logger.Warn("Rate limit store unavailable",
				"bucket_key", key,
				"tier", tier.Name,
				"fail_open", l.opts.FailOpen,
				"error", err,
			)
		})
		return l.degraded(ctx, tier.Name, key, start)
	}

	if !res.Consumed {
		retryAfter := res.RetryAfter
		if retryAfter <= 0 {
			retryAfter = l.opts.DefaultRetryAfter
		}
		l.metrics.record(ctx, tier.Name, outcomeDenied, start)
		return Decision{
			Allowed:    false,
			RetryAfter: retryAfter,
			BucketKey:  key,
			Remaining:  res.Remaining,
		}
	}

	l.metrics.record(ctx, tier.Name, outcomeAllowed, start)
	return Decision{
		Allowed:   true,
		BucketKey: key,
		Remaining: res.Remaining,
	}
}

func (l *RateLimiter) degraded(ctx context.Context, tier, key string, start time.Time) Decision {
	l.metrics.record(ctx, tier, outcomeDegraded, start)
	d := Decision{
		Allowed:   l.opts.FailOpen,
		BucketKey: key,
		Remaining: -1,
		Degraded:  true,
	}
	if !d.Allowed {
		d.RetryAfter = l.opts.DefaultRetryAfter
	}
	return d
}

// AvailableTokens reports the tokens left in key's bucket under tier
// without charging it.
func (l *RateLimiter) AvailableTokens(ctx context.Context, key, tierName string) (int64, error) {
	tier, ok := l.registry.Get(tierName)
	if !ok {
		return 0, &ConfigurationError{Reason: fmt.Sprintf("unknown tier %q", tierName)}
	}

	storeCtx, cancel := context.WithTimeout(ctx, l.opts.StoreTimeout)
	defer cancel()

	return l.buckets.Resolve(key, tier).AvailableTokens(storeCtx)
}

// ClearLocalCache drops every cached bucket handle. Bucket state in the
// store is kept.
func (l *RateLimiter) ClearLocalCache() int {
	n := l.buckets.Clear()
	l.logger.Info("Local bucket cache cleared", "handles", n)
	return n
}

func (l *RateLimiter) LocalCacheSize() int {
	return l.buckets.Len()
}
