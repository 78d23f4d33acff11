package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/order-events-service/internal/domain"
)

type orderKey struct {
	email string
	id    string
}

// Orders — хранилище заказов в памяти (локальный режим и тесты).
type Orders struct {
	mu    sync.RWMutex
	store map[orderKey]domain.Order
	now   func() time.Time
}

func NewOrders() *Orders {
	return &Orders{store: make(map[orderKey]domain.Order), now: time.Now}
}

func (s *Orders) Create(_ context.Context, draft domain.Order) (domain.Order, error) {
	o := clone(draft)
	o.ID = uuid.NewString()
	o.CreatedAt = s.now().UTC().Truncate(time.Millisecond)
	if err := o.Validate(); err != nil {
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}
	s.mu.Lock()
	s.store[orderKey{o.Email, o.ID}] = o
	s.mu.Unlock()
	return clone(o), nil
}

func (s *Orders) GetAll(_ context.Context) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Order, 0, len(s.store))
	for _, o := range s.store {
		out = append(out, clone(o))
	}
	sortOrders(out)
	return out, nil
}

func (s *Orders) GetByCustomer(_ context.Context, email string) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Order, 0)
	for k, o := range s.store {
		if k.email == email {
			out = append(out, clone(o))
		}
	}
	sortOrders(out)
	return out, nil
}

func (s *Orders) GetOne(_ context.Context, email, id string) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.store[orderKey{email, id}]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return clone(o), nil
}

func (s *Orders) Delete(_ context.Context, email, id string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := orderKey{email, id}
	o, ok := s.store[k]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	delete(s.store, k)
	return o, nil
}

// Len — количество заказов.
func (s *Orders) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.store)
}

func clone(o domain.Order) domain.Order {
	o.Products = append([]domain.LineItem(nil), o.Products...)
	return o
}

func sortOrders(orders []domain.Order) {
	sort.Slice(orders, func(i, j int) bool {
		a, b := orders[i], orders[j]
		if a.Email != b.Email {
			return a.Email < b.Email
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

var _ domain.OrderStore = (*Orders)(nil)
