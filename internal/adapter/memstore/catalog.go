package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/example/order-events-service/internal/domain"
)

// Catalog — каталог товаров в памяти.
type Catalog struct {
	mu    sync.RWMutex
	items map[string]domain.CatalogItem
}

func NewCatalog(items ...domain.CatalogItem) *Catalog {
	c := &Catalog{items: make(map[string]domain.CatalogItem, len(items))}
	for _, it := range items {
		c.items[it.ID] = it
	}
	return c
}

// LoadCatalogFile — загрузить каталог из JSON-массива товаров.
func LoadCatalogFile(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog seed: %w", err)
	}
	var items []domain.CatalogItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode catalog seed %s: %w", path, err)
	}
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return nil, fmt.Errorf("catalog seed %s: %w", path, err)
		}
	}
	return NewCatalog(items...), nil
}

func (c *Catalog) LookupMany(_ context.Context, ids []string) ([]domain.CatalogItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.CatalogItem, 0, len(ids))
	for _, id := range domain.DistinctIDs(ids) {
		if it, ok := c.items[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

// Set — заменить товар (цены каталога меняются независимо от заказов).
func (c *Catalog) Set(it domain.CatalogItem) {
	c.mu.Lock()
	c.items[it.ID] = it
	c.mu.Unlock()
}

var _ domain.CatalogLookup = (*Catalog)(nil)
