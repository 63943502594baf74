package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_TokensStayWithinBounds(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(clock.Now, 0)
	ctx := context.Background()
	tr := tier("t", Bandwidth{Capacity: 3, Period: 3 * time.Second})

	for i := 0; i < 10; i++ {
		res, err := store.TryConsume(ctx, "k", tr, 1)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.Remaining, int64(0))
		assert.LessOrEqual(t, res.Remaining, int64(3))
		assert.Equal(t, i < 3, res.Consumed, "attempt %d", i)
	}

	// A long idle period never refills above capacity.
	clock.Advance(time.Hour)
	res, err := store.TryConsume(ctx, "k", tr, 0)
	require.NoError(t, err)
	assert.True(t, res.Consumed)
	assert.Equal(t, int64(3), res.Remaining)
}

func TestMemoryStore_RefillRestoresExactlyCapacity(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(clock.Now, 0)
	ctx := context.Background()
	tr := tier("t", Bandwidth{Capacity: 4, Period: 8 * time.Second})

	for i := 0; i < 4; i++ {
		res, err := store.TryConsume(ctx, "k", tr, 1)
		require.NoError(t, err)
		require.True(t, res.Consumed)
	}

	clock.Advance(2 * time.Second)
	res, err := store.TryConsume(ctx, "k", tr, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Remaining, "greedy refill trickles one token per period/capacity")

	clock.Advance(6 * time.Second)
	res, err = store.TryConsume(ctx, "k", tr, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Remaining)

	clock.Advance(8 * time.Second)
	res, err = store.TryConsume(ctx, "k", tr, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Remaining)
}

func TestMemoryStore_KeysAreIndependent(t *testing.T) {
	store := NewMemoryStore(newFakeClock().Now, 0)
	ctx := context.Background()
	tr := tier("t", Bandwidth{Capacity: 1, Period: time.Minute})

	res, _ := store.TryConsume(ctx, "a", tr, 1)
	assert.True(t, res.Consumed)
	res, _ = store.TryConsume(ctx, "a", tr, 1)
	assert.False(t, res.Consumed)

	res, _ = store.TryConsume(ctx, "b", tr, 1)
	assert.True(t, res.Consumed)
}

func TestMemoryStore_AllBandwidthsMustPass(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(clock.Now, 0)
	ctx := context.Background()
	tr := tier("t",
		Bandwidth{Capacity: 2, Period: time.Second},
		Bandwidth{Capacity: 3, Period: time.Hour},
	)

	for i := 0; i < 2; i++ {
		res, err := store.TryConsume(ctx, "k", tr, 1)
		require.NoError(t, err)
		require.True(t, res.Consumed)
	}

	res, _ := store.TryConsume(ctx, "k", tr, 1)
	assert.False(t, res.Consumed, "short bandwidth is empty")
	assert.Equal(t, 500*time.Millisecond, res.RetryAfter)

	clock.Advance(time.Second)
	res, _ = store.TryConsume(ctx, "k", tr, 1)
	assert.True(t, res.Consumed, "short bandwidth refilled, long one still has a token")
	assert.Equal(t, int64(0), res.Remaining)

	res, _ = store.TryConsume(ctx, "k", tr, 1)
	assert.False(t, res.Consumed)

	// The denied attempt charged nothing: the short bandwidth still holds
	// its refilled tokens while the long one is empty.
	clock.Advance(time.Second)
	res, _ = store.TryConsume(ctx, "k", tr, 1)
	assert.False(t, res.Consumed, "long bandwidth remains the bottleneck")
	assert.Greater(t, res.RetryAfter, 10*time.Minute)
}

func TestMemoryStore_ConcurrentAttemptsNeverOverAdmit(t *testing.T) {
	store := NewMemoryStore(newFakeClock().Now, 0)
	ctx := context.Background()
	tr := tier("t", Bandwidth{Capacity: 10, Period: time.Hour})

	const attempts = 64
	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := store.TryConsume(ctx, "shared", tr, 1)
			if err == nil && res.Consumed {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), admitted.Load())
}

func TestMemoryStore_EvictIdle(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(clock.Now, 0)
	ctx := context.Background()

	_, _ = store.TryConsume(ctx, "short", tier("s", Bandwidth{Capacity: 1, Period: time.Minute}), 1)
	_, _ = store.TryConsume(ctx, "long", tier("l", Bandwidth{Capacity: 1, Period: time.Hour}), 1)
	require.Equal(t, 2, store.Len())

	clock.Advance(2 * time.Minute)
	store.evictIdle()
	assert.Equal(t, 1, store.Len())

	clock.Advance(time.Hour)
	store.evictIdle()
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_CloseIsIdempotent(t *testing.T) {
	store := NewMemoryStore(nil, time.Millisecond)
	store.Close()
	store.Close()
}
