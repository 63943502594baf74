package invalidation

import (
	"context"
	"productservice/internal/cache"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingEvictor captures evictions instead of touching a store.
type recordingEvictor struct {
	mu       sync.Mutex
	evicted  [][]string
	allCalls int
}

func (r *recordingEvictor) Evict(_ context.Context, ids ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evicted = append(r.evicted, ids)
	return nil
}

func (r *recordingEvictor) EvictAll(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.allCalls++
	return 0, nil
}

func (r *recordingEvictor) calls() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.evicted...)
}

func newProductCache(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.New("products", cache.NewMemoryStore(0, 0), cache.Options{})
	require.NoError(t, err)
	return c
}

func cached(c *cache.Cache, id string) bool {
	var v interface{}
	return c.Get(context.Background(), id, &v)
}

func TestCoordinator_HandleMessage(t *testing.T) {
	evictor := &recordingEvictor{}
	c, err := NewCoordinator(NewMemoryBus(0), "events", evictor, nil)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, c.HandleMessage(ctx, "PRODUCT_UPDATED:42"))
	assert.Equal(t, [][]string{{"42", cache.AllKey}}, evictor.calls())

	assert.ErrorIs(t, c.HandleMessage(ctx, "INVALID_FORMAT"), ErrMalformedMessage)
	assert.ErrorIs(t, c.HandleMessage(ctx, "PRODUCT_RENAMED:42"), ErrUnknownEventType)
	assert.Len(t, evictor.calls(), 1, "rejected messages evict nothing")
}

func TestCoordinator_InvalidateEntityAndAll(t *testing.T) {
	products := newProductCache(t)
	c, err := NewCoordinator(NewMemoryBus(0), "events", products, nil)
	require.NoError(t, err)
	ctx := context.Background()

	products.Put(ctx, "1", map[string]string{"id": "1"})
	products.Put(ctx, "2", map[string]string{"id": "2"})
	products.Put(ctx, cache.AllKey, []string{"1", "2"})

	require.NoError(t, c.InvalidateEntity(ctx, "1"))
	assert.False(t, cached(products, "1"))
	assert.False(t, cached(products, cache.AllKey))
	assert.True(t, cached(products, "2"))

	n, err := c.InvalidateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, cached(products, "2"))
}

func TestCoordinator_MalformedMessageDoesNotStopListener(t *testing.T) {
	bus := NewMemoryBus(0)
	products := newProductCache(t)
	c, err := NewCoordinator(bus, "events", products, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	defer c.Stop()

	products.Put(ctx, "7", map[string]string{"id": "7"})
	products.Put(ctx, "8", map[string]string{"id": "8"})
	products.Put(ctx, cache.AllKey, []string{"7", "8"})

	require.NoError(t, bus.Publish(ctx, "events", "INVALID_FORMAT"))
	require.NoError(t, bus.Publish(ctx, "events", "PRODUCT_DELETED:7"))

	assert.Eventually(t, func() bool {
		return !cached(products, "7") && !cached(products, cache.AllKey)
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, cached(products, "8"))
}

func TestCoordinator_StartStop(t *testing.T) {
	c, err := NewCoordinator(NewMemoryBus(0), "events", &recordingEvictor{}, nil)
	require.NoError(t, err)

	assert.NoError(t, c.Stop(), "stopping before start is a no-op")
	require.NoError(t, c.Start(context.Background()))
	assert.Error(t, c.Start(context.Background()))
	assert.NoError(t, c.Stop())
	assert.NoError(t, c.Stop())

	require.NoError(t, c.Start(context.Background()), "a stopped coordinator can be started again")
	assert.NoError(t, c.Stop())
}

func TestCoordinator_EveryRedisSubscriberEvicts(t *testing.T) {
	mr := miniredis.RunT(t)
	newBus := func() *RedisBus {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { client.Close() })
		return NewRedisBus(client)
	}
	ctx := context.Background()

	var caches []*cache.Cache
	for i := 0; i < 2; i++ {
		products := newProductCache(t)
		products.Put(ctx, "42", map[string]string{"id": "42"})
		products.Put(ctx, "43", map[string]string{"id": "43"})
		products.Put(ctx, cache.AllKey, []string{"42", "43"})

		c, err := NewCoordinator(newBus(), "product-cache-events", products, nil)
		require.NoError(t, err)
		require.NoError(t, c.Start(ctx))
		t.Cleanup(func() { c.Stop() })
		caches = append(caches, products)
	}

	publisher := NewPublisher(newBus(), "product-cache-events", time.Second, nil)
	require.NoError(t, publisher.Publish(ctx, Updated("42")))

	for _, products := range caches {
		assert.Eventually(t, func() bool {
			return !cached(products, "42") && !cached(products, cache.AllKey)
		}, 2*time.Second, 10*time.Millisecond)
		assert.True(t, cached(products, "43"))
	}
}
