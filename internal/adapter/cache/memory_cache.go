package cache

import (
	"context"
	"sync"
	"time"

	"github.com/example/order-events-service/internal/domain"
)

type memoryEntry struct {
	item    domain.CatalogItem
	expires time.Time
}

// MemoryItemCache — кэш товаров каталога в памяти процесса с TTL.
type MemoryItemCache struct {
	mu    sync.RWMutex
	store map[string]memoryEntry
	ttl   time.Duration
	now   func() time.Time
}

func NewMemoryItemCache(ttl time.Duration) *MemoryItemCache {
	return &MemoryItemCache{store: make(map[string]memoryEntry), ttl: ttl, now: time.Now}
}

func (c *MemoryItemCache) GetMany(_ context.Context, ids []string) (map[string]domain.CatalogItem, error) {
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]domain.CatalogItem, len(ids))
	for _, id := range ids {
		e, ok := c.store[id]
		if !ok || now.After(e.expires) {
			continue
		}
		out[id] = e.item
	}
	return out, nil
}

// SetMany заодно вычищает просроченные записи.
func (c *MemoryItemCache) SetMany(_ context.Context, items []domain.CatalogItem) error {
	now := c.now()
	expires := now.Add(c.ttl)
	c.mu.Lock()
	for id, e := range c.store {
		if now.After(e.expires) {
			delete(c.store, id)
		}
	}
	for _, it := range items {
		c.store[it.ID] = memoryEntry{item: it, expires: expires}
	}
	c.mu.Unlock()
	return nil
}

// Len — число записей, включая ещё не вычищенные просроченные.
func (c *MemoryItemCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

var _ ItemCache = (*MemoryItemCache)(nil)
