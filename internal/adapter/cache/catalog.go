package cache

import (
	"context"
	"log/slog"

	"github.com/example/order-events-service/internal/domain"
)

// ItemCache — порт кэша товаров каталога.
type ItemCache interface {
	GetMany(ctx context.Context, ids []string) (map[string]domain.CatalogItem, error)
	SetMany(ctx context.Context, items []domain.CatalogItem) error
}

// CachedCatalog — read-through обёртка над каталогом. В источник уходят
// только идентификаторы, которых нет в кэше; ошибки кэша не фатальны.
type CachedCatalog struct {
	Source domain.CatalogLookup
	Cache  ItemCache
	Logger *slog.Logger
}

func (c CachedCatalog) LookupMany(ctx context.Context, ids []string) ([]domain.CatalogItem, error) {
	ids = domain.DistinctIDs(ids)

	cached, err := c.Cache.GetMany(ctx, ids)
	if err != nil {
		c.logger().WarnContext(ctx, "catalog cache read failed", "error", err)
		cached = nil
	}

	var missing []string
	for _, id := range ids {
		if _, ok := cached[id]; !ok {
			missing = append(missing, id)
		}
	}

	found := make(map[string]domain.CatalogItem, len(ids))
	for id, it := range cached {
		found[id] = it
	}
	if len(missing) > 0 {
		fetched, err := c.Source.LookupMany(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, it := range fetched {
			found[it.ID] = it
		}
		if err := c.Cache.SetMany(ctx, fetched); err != nil {
			c.logger().WarnContext(ctx, "catalog cache write failed", "error", err)
		}
	}

	out := make([]domain.CatalogItem, 0, len(found))
	for _, id := range ids {
		if it, ok := found[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func (c CachedCatalog) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

var _ domain.CatalogLookup = CachedCatalog{}
