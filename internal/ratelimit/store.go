package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable wraps every failure to reach the bucket store,
// including timeouts.
var ErrStoreUnavailable = errors.New("rate limit store unavailable")

// ConsumeResult is the outcome of one atomic consumption attempt.
type ConsumeResult struct {
	Consumed bool
	// Remaining is the smallest whole token count across the tier's bandwidths
	// after the attempt.
	Remaining int64
	// RetryAfter is how long until the request could be admitted. Zero when
	// consumed or when the store cannot tell.
	RetryAfter time.Duration
}

// BucketStore performs atomic token consumption on shared bucket state.
// For one key, concurrent calls from any number of processes must be
// serialized by the store itself. Consuming zero tokens reports the current
// state without charging it.
type BucketStore interface {
	TryConsume(ctx context.Context, key string, tier BucketConfiguration, tokens int64) (ConsumeResult, error)
}

// Clock returns the current time. Stores take one so refill can be tested
// without sleeping.
type Clock func() time.Time

// refill returns the greedy-refilled token count for one bandwidth.
func refill(bw Bandwidth, tokens float64, last, now time.Time) float64 {
	if elapsed := now.Sub(last); elapsed > 0 {
		tokens += float64(elapsed) * float64(bw.Capacity) / float64(bw.Period)
	}
	if tokens > float64(bw.Capacity) {
		tokens = float64(bw.Capacity)
	}
	return tokens
}

// waitFor returns how long bandwidth bw needs to accumulate missing tokens.
func waitFor(bw Bandwidth, missing float64) time.Duration {
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing * float64(bw.Period) / float64(bw.Capacity))
}
