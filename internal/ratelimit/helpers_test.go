package ratelimit

import (
	"context"
	"errors"
	"productservice/internal/models"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// failingStore fails every call with err.
type failingStore struct {
	err   error
	calls int
	mu    sync.Mutex
}

func (s *failingStore) TryConsume(ctx context.Context, key string, tier BucketConfiguration, tokens int64) (ConsumeResult, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return ConsumeResult{}, errors.Join(ErrStoreUnavailable, s.err)
}

// countingStore records how many consumption calls reach the store.
type countingStore struct {
	BucketStore
	mu    sync.Mutex
	calls int
}

func (s *countingStore) TryConsume(ctx context.Context, key string, tier BucketConfiguration, tokens int64) (ConsumeResult, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.BucketStore.TryConsume(ctx, key, tier, tokens)
}

func (s *countingStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	cfg := models.NewDefaultConfig().RateLimit
	cfg.Tiers["burst"] = []models.BandwidthConfig{{Capacity: 5, Period: 10 * time.Second}}
	registry, err := NewRegistry(cfg)
	require.NoError(t, err)
	return registry
}

func tier(name string, bandwidths ...Bandwidth) BucketConfiguration {
	return BucketConfiguration{Name: name, Bandwidths: bandwidths}
}
