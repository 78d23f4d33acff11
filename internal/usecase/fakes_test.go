package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/example/order-events-service/internal/domain"
)

type recordingPublisher struct {
	mu   sync.Mutex
	envs []domain.Envelope
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, env domain.Envelope) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envs = append(p.envs, env)
	return nil
}

func (p *recordingPublisher) sent() []domain.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Envelope(nil), p.envs...)
}

// failingStore отказывает на записи и удалении, чтение делегирует.
type failingStore struct {
	domain.OrderStore
	err error
}

func (s failingStore) Create(context.Context, domain.Order) (domain.Order, error) {
	return domain.Order{}, s.err
}

func (s failingStore) Delete(context.Context, string, string) (domain.Order, error) {
	return domain.Order{}, s.err
}

type failingCatalog struct{ err error }

func (c failingCatalog) LookupMany(context.Context, []string) ([]domain.CatalogItem, error) {
	return nil, c.err
}

// memLog — журнал в памяти с уникальностью (pk, sk).
type memLog struct {
	mu      sync.Mutex
	recs    map[string]domain.EventRecord
	failFor string
}

func newMemLog() *memLog { return &memLog{recs: make(map[string]domain.EventRecord)} }

func (l *memLog) Append(_ context.Context, rec domain.EventRecord) error {
	if l.failFor != "" && rec.Info.OrderID == l.failFor {
		return errors.New("disk full")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key := rec.PK + "|" + rec.SK
	if _, ok := l.recs[key]; ok {
		return domain.ErrIngest
	}
	l.recs[key] = rec
	return nil
}

func (l *memLog) ListByEntity(_ context.Context, pk string) ([]domain.EventRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.EventRecord
	for k, r := range l.recs {
		if strings.HasPrefix(k, pk+"|") {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SK < out[j].SK })
	return out, nil
}

func catalogItem(id, code, price string) domain.CatalogItem {
	return domain.CatalogItem{ID: id, Name: "product " + id, Code: code, Price: decimal.RequireFromString(price)}
}
