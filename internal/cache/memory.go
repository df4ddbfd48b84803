package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryCache is a bounded in-process LRU used when Redis is not configured
// or unreachable.
type MemoryCache struct {
	entries *lru.Cache[string, []byte]
}

// NewMemoryCache keeps at most maxEntries items (minimum 1).
func NewMemoryCache(maxEntries int) *MemoryCache {
	// lru.New only fails for a non-positive size.
	entries, _ := lru.New[string, []byte](max(maxEntries, 1))
	return &MemoryCache{entries: entries}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, ok := m.entries.Get(key)
	return data, ok, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, data []byte) error {
	m.entries.Add(key, data)
	return nil
}

// Len returns the number of cached entries.
func (m *MemoryCache) Len() int {
	return m.entries.Len()
}

func (m *MemoryCache) Close() error {
	m.entries.Purge()
	return nil
}
