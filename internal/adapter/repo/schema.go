package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema — создать необходимые таблицы, если отсутствуют.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS products (
  id text PRIMARY KEY,
  product_name text NOT NULL,
  code text NOT NULL,
  price numeric(12,2) NOT NULL CHECK (price >= 0),
  model text NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS orders (
  email text NOT NULL,
  order_id text NOT NULL,
  created_at timestamptz NOT NULL,
  shipping_type text NOT NULL,
  carrier text NOT NULL,
  payment text NOT NULL,
  total_price numeric NOT NULL,
  products jsonb NOT NULL,
  PRIMARY KEY (email, order_id)
);`)
	return err
}
