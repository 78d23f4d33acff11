package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/example/order-events-service/internal/domain"
)

// PostgresCatalog — чтение товаров каталога из таблицы products.
type PostgresCatalog struct {
	Pool *pgxpool.Pool
}

func NewPostgresCatalog(pool *pgxpool.Pool) *PostgresCatalog {
	return &PostgresCatalog{Pool: pool}
}

func (c *PostgresCatalog) LookupMany(ctx context.Context, ids []string) ([]domain.CatalogItem, error) {
	ids = domain.DistinctIDs(ids)
	if len(ids) == 0 {
		return []domain.CatalogItem{}, nil
	}
	rows, err := c.Pool.Query(ctx, `SELECT id, product_name, code, price::text, model FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, storageErr("query products", err)
	}
	defer rows.Close()

	byID := make(map[string]domain.CatalogItem, len(ids))
	for rows.Next() {
		var (
			it    domain.CatalogItem
			price string
		)
		if err := rows.Scan(&it.ID, &it.Name, &it.Code, &price, &it.Model); err != nil {
			return nil, storageErr("scan product", err)
		}
		if it.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("decode price of %s: %w", it.ID, err)
		}
		if err := it.Validate(); err != nil {
			return nil, storageErr("invalid product row", err)
		}
		byID[it.ID] = it
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("query products", err)
	}

	out := make([]domain.CatalogItem, 0, len(byID))
	for _, id := range ids {
		if it, ok := byID[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

var _ domain.CatalogLookup = (*PostgresCatalog)(nil)
