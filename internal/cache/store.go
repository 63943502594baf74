// Package cache keeps computed read results per instance, keyed by entity
// identity and namespaced by cache name. Entries expire after a TTL and are
// evicted early by invalidation events. A failing store never fails a read:
// it degrades to a miss and the caller falls through to the system of record.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by a Store when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Store holds raw cache entries. Implementations must be safe for
// concurrent use and must treat deleting an absent key as a no-op.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePrefix removes every key starting with prefix and reports how many.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
	Close() error
}
