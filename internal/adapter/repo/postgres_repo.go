package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/example/order-events-service/internal/domain"
)

const orderColumns = `email, order_id, created_at, shipping_type, carrier, payment, total_price::text, products`

// PostgresOrderRepo — хранилище заказов в Postgres, ключ (email, order_id).
type PostgresOrderRepo struct {
	Pool *pgxpool.Pool
	now  func() time.Time
}

func NewPostgresOrderRepo(pool *pgxpool.Pool) *PostgresOrderRepo {
	return &PostgresOrderRepo{Pool: pool, now: time.Now}
}

func (r *PostgresOrderRepo) Create(ctx context.Context, draft domain.Order) (domain.Order, error) {
	o := draft
	o.ID = uuid.NewString()
	o.CreatedAt = r.now().UTC().Truncate(time.Millisecond)
	if err := o.Validate(); err != nil {
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}
	products, err := json.Marshal(o.Products)
	if err != nil {
		return domain.Order{}, fmt.Errorf("encode products: %w", err)
	}
	_, err = r.Pool.Exec(ctx, `INSERT INTO orders(email, order_id, created_at, shipping_type, carrier, payment, total_price, products)
        VALUES($1, $2, $3, $4, $5, $6, $7::numeric, $8)`,
		o.Email, o.ID, o.CreatedAt, string(o.Shipping.Type), string(o.Shipping.Carrier),
		string(o.Billing.Payment), o.Billing.TotalPrice.String(), products)
	if err != nil {
		return domain.Order{}, storageErr("insert order", err)
	}
	return o, nil
}

func (r *PostgresOrderRepo) GetAll(ctx context.Context) ([]domain.Order, error) {
	return r.query(ctx, `SELECT `+orderColumns+` FROM orders`)
}

func (r *PostgresOrderRepo) GetByCustomer(ctx context.Context, email string) ([]domain.Order, error) {
	return r.query(ctx, `SELECT `+orderColumns+` FROM orders WHERE email = $1`, email)
}

func (r *PostgresOrderRepo) GetOne(ctx context.Context, email, id string) (domain.Order, error) {
	row := r.Pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE email = $1 AND order_id = $2`, email, id)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, storageErr("get order", err)
	}
	return o, nil
}

// Delete удаляет строку и возвращает её прежнее значение одним запросом.
func (r *PostgresOrderRepo) Delete(ctx context.Context, email, id string) (domain.Order, error) {
	row := r.Pool.QueryRow(ctx, `DELETE FROM orders WHERE email = $1 AND order_id = $2 RETURNING `+orderColumns, email, id)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, storageErr("delete order", err)
	}
	return o, nil
}

func (r *PostgresOrderRepo) query(ctx context.Context, sql string, args ...any) ([]domain.Order, error) {
	rows, err := r.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, storageErr("query orders", err)
	}
	defer rows.Close()
	orders := make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, storageErr("scan order", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("query orders", err)
	}
	return orders, nil
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o                      domain.Order
		shipType, carrier, pay string
		total                  string
		products               []byte
	)
	if err := row.Scan(&o.Email, &o.ID, &o.CreatedAt, &shipType, &carrier, &pay, &total, &products); err != nil {
		return domain.Order{}, err
	}
	o.CreatedAt = o.CreatedAt.UTC()
	o.Shipping = domain.Shipping{Type: domain.ShippingType(shipType), Carrier: domain.CarrierType(carrier)}
	price, err := decimal.NewFromString(total)
	if err != nil {
		return domain.Order{}, fmt.Errorf("decode total_price %q: %w", total, err)
	}
	o.Billing = domain.Billing{Payment: domain.PaymentType(pay), TotalPrice: price}
	if err := json.Unmarshal(products, &o.Products); err != nil {
		return domain.Order{}, fmt.Errorf("decode products: %w", err)
	}
	return o, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, domain.ErrStorage, err)
}

var _ domain.OrderStore = (*PostgresOrderRepo)(nil)
