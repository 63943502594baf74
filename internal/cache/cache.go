package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AllKey is the identifier of the aggregate entry holding every entity.
const AllKey = "all"

const (
	DefaultTTL       = time.Hour
	DefaultOpTimeout = 250 * time.Millisecond
)

type Options struct {
	TTL       time.Duration
	OpTimeout time.Duration
	Logger    *slog.Logger
}

// Cache is a named view of a Store. Keys are "<name>::<id>" and values are
// stored as JSON. It is safe for concurrent use.
type Cache struct {
	name      string
	store     Store
	ttl       time.Duration
	opTimeout time.Duration
	logger    *slog.Logger

	lookups metric.Int64Counter
}

func New(name string, store Store, opts Options) (*Cache, error) {
	if name == "" {
		return nil, errors.New("cache name cannot be empty")
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = DefaultOpTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	lookups, err := otel.Meter("productservice/cache").Int64Counter(
		"cache.lookups",
		metric.WithDescription("Cache lookups by cache name and result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache metrics: %w", err)
	}

	return &Cache{
		name:      name,
		store:     store,
		ttl:       opts.TTL,
		opTimeout: opts.OpTimeout,
		logger:    logger.With("component", "cache", "cache", name),
		lookups:   lookups,
	}, nil
}

func (c *Cache) Name() string {
	return c.name
}

func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Key returns the store key for id.
func (c *Cache) Key(id string) string {
	return c.name + "::" + id
}

// Get decodes the entry for id into dst and reports whether it was found.
// Store errors and undecodable entries count as misses.
func (c *Cache) Get(ctx context.Context, id string, dst interface{}) bool {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	data, err := c.store.Get(ctx, c.Key(id))
	switch {
	case errors.Is(err, ErrMiss):
		c.recordLookup(ctx, "miss")
		return false
	case err != nil:
		c.logger.Warn("Cache read failed, treating as miss", "key", c.Key(id), "error", err)
		c.recordLookup(ctx, "error")
		return false
	}

	if err := json.Unmarshal(data, dst); err != nil {
		c.logger.Warn("Discarding undecodable cache entry", "key", c.Key(id), "error", err)
		c.recordLookup(ctx, "error")
		_ = c.store.Delete(ctx, c.Key(id))
		return false
	}

	c.recordLookup(ctx, "hit")
	return true
}

// Put stores value under id with the cache TTL. Failures are logged only.
func (c *Cache) Put(ctx context.Context, id string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Error("Failed to encode cache entry", "key", c.Key(id), "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.store.Set(ctx, c.Key(id), data, c.ttl); err != nil {
		c.logger.Warn("Cache write failed", "key", c.Key(id), "error", err)
	}
}

// Evict removes the entries for ids. Absent entries are not an error.
func (c *Cache) Evict(ctx context.Context, ids ...string) error {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.Key(id)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.store.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("evict %v: %w", keys, err)
	}
	return nil
}

// EvictAll removes every entry in this cache's namespace.
func (c *Cache) EvictAll(ctx context.Context) (int, error) {
	n, err := c.store.DeletePrefix(ctx, c.name+"::")
	if err != nil {
		return n, fmt.Errorf("evict all in %s: %w", c.name, err)
	}
	return n, nil
}

// Ping reports whether the backing store is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	return c.store.Ping(ctx)
}

func (c *Cache) recordLookup(ctx context.Context, result string) {
	c.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache", c.name),
		attribute.String("result", result),
	))
}
