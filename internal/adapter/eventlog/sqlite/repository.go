// Package sqlite хранит журнал событий заказов в SQLite.
//
// Таблица только дополняется: каждая строка является неизменяемой записью о
// доставленном событии. Ключ (pk, sk) уникален.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/example/order-events-service/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS order_events (
    pk             TEXT    NOT NULL,
    sk             TEXT    NOT NULL,
    created_at     INTEGER NOT NULL,
    email          TEXT    NOT NULL DEFAULT '',
    request_id     TEXT    NOT NULL DEFAULT '',
    event_type     TEXT    NOT NULL,
    order_id       TEXT    NOT NULL,
    product_codes  TEXT    NOT NULL DEFAULT '[]',
    message_id     TEXT    NOT NULL DEFAULT '',
    PRIMARY KEY (pk, sk)
);

CREATE INDEX IF NOT EXISTS idx_order_events_email ON order_events(email, created_at);
`

// Repository — реализация domain.EventLog поверх SQLite.
type Repository struct {
	db *sql.DB
}

// Open открывает (или создаёт) базу по пути и применяет схему.
//
//	log, err := sqlite.Open("./data/events.db")
func Open(path string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite: create dir for %q: %w", path, err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}
	// один писатель
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// Append вставляет запись. При повторе ключа (pk, sk) возвращается ErrIngest,
// существующая запись не перезаписывается.
func (r *Repository) Append(ctx context.Context, rec domain.EventRecord) error {
	codes, err := json.Marshal(rec.Info.ProductCodes)
	if err != nil {
		return fmt.Errorf("sqlite: encode product codes: %w", err)
	}
	const q = `
		INSERT INTO order_events
			(pk, sk, created_at, email, request_id, event_type, order_id, product_codes, message_id)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, q,
		rec.PK, rec.SK, rec.CreatedAt, rec.Email, rec.RequestID,
		string(rec.EventType), rec.Info.OrderID, string(codes), rec.Info.MessageID,
	)
	if isDuplicateKey(err) {
		return fmt.Errorf("%w: duplicate record %s/%s", domain.ErrIngest, rec.PK, rec.SK)
	}
	if err != nil {
		return fmt.Errorf("sqlite: append %s/%s: %w", rec.PK, rec.SK, err)
	}
	return nil
}

// ListByEntity возвращает записи сущности в порядке sort key.
func (r *Repository) ListByEntity(ctx context.Context, pk string) ([]domain.EventRecord, error) {
	const q = `
		SELECT pk, sk, created_at, email, request_id, event_type, order_id, product_codes, message_id
		FROM   order_events
		WHERE  pk = ?
		ORDER  BY sk`

	rows, err := r.db.QueryContext(ctx, q, pk)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list %q: %w", pk, err)
	}
	defer rows.Close()

	out := make([]domain.EventRecord, 0)
	for rows.Next() {
		var (
			rec   domain.EventRecord
			kind  string
			codes string
		)
		if err := rows.Scan(&rec.PK, &rec.SK, &rec.CreatedAt, &rec.Email, &rec.RequestID,
			&kind, &rec.Info.OrderID, &codes, &rec.Info.MessageID); err != nil {
			return nil, fmt.Errorf("sqlite: scan event: %w", err)
		}
		rec.EventType = domain.EventKind(kind)
		if err := json.Unmarshal([]byte(codes), &rec.Info.ProductCodes); err != nil {
			return nil, fmt.Errorf("sqlite: decode product codes of %s/%s: %w", rec.PK, rec.SK, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func isDuplicateKey(err error) bool {
	var se *moderncsqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

var _ domain.EventLog = (*Repository)(nil)
