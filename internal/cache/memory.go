package cache

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is a process-local Store on an expirable LRU. The LRU drops
// entries after ttl and evicts the least recently used one once maxSize is
// reached. Entries written with a shorter ttl than the store's are never
// returned after their own expiry.
type MemoryStore struct {
	lru *expirable.LRU[string, memoryEntry]
	now func() time.Time
}

// NewMemoryStore creates a store. A non-positive maxSize means unbounded; a
// non-positive ttl leaves expiry to the per-entry ttl passed to Set.
func NewMemoryStore(maxSize int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		lru: expirable.NewLRU[string, memoryEntry](maxSize, nil, ttl),
		now: time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	entry, ok := m.lru.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	if !m.now().Before(entry.expiresAt) {
		m.lru.Remove(key)
		return nil, ErrMiss
	}
	return entry.value, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	m.lru.Add(key, memoryEntry{value: stored, expiresAt: m.now().Add(ttl)})
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		m.lru.Remove(key)
	}
	return nil
}

func (m *MemoryStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	n := 0
	for _, key := range m.lru.Keys() {
		if strings.HasPrefix(key, prefix) && m.lru.Remove(key) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

// Len reports how many entries are held. Entries past a per-entry ttl are
// counted until they are read or swept.
func (m *MemoryStore) Len() int {
	return m.lru.Len()
}

// Close drops every entry.
func (m *MemoryStore) Close() error {
	m.lru.Purge()
	return nil
}

// evictExpired removes entries whose own ttl has passed.
func (m *MemoryStore) evictExpired() {
	now := m.now()
	for _, key := range m.lru.Keys() {
		if entry, ok := m.lru.Peek(key); ok && !now.Before(entry.expiresAt) {
			m.lru.Remove(key)
		}
	}
}
