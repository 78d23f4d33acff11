package memstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/order-events-service/internal/domain"
)

func draft(email string) domain.Order {
	return domain.NewOrder(email, domain.Shipping{Type: domain.ShippingStandard, Carrier: domain.CarrierUPS},
		domain.PaymentCreditCard, []domain.CatalogItem{{ID: "X1", Code: "X1", Price: decimal.NewFromInt(10)}})
}

func TestOrders_CreateAssignsIdentity(t *testing.T) {
	ctx := context.Background()
	s := NewOrders()

	in := draft("a@b.com")
	in.ID = "client-supplied"
	o, err := s.Create(ctx, in)
	require.NoError(t, err)

	assert.NotEqual(t, "client-supplied", o.ID)
	assert.False(t, o.CreatedAt.IsZero())

	other, err := s.Create(ctx, draft("a@b.com"))
	require.NoError(t, err)
	assert.NotEqual(t, o.ID, other.ID)
}

func TestOrders_RejectsEmptyOrder(t *testing.T) {
	s := NewOrders()
	_, err := s.Create(context.Background(), domain.Order{Email: "a@b.com"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Zero(t, s.Len())
}

func TestOrders_ReadsAndDelete(t *testing.T) {
	ctx := context.Background()
	s := NewOrders()
	a1, _ := s.Create(ctx, draft("a@b.com"))
	_, _ = s.Create(ctx, draft("a@b.com"))
	_, _ = s.Create(ctx, draft("c@d.com"))

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	first, _ := s.GetByCustomer(ctx, "a@b.com")
	second, _ := s.GetByCustomer(ctx, "a@b.com")
	assert.Len(t, first, 2)
	assert.Equal(t, first, second)

	got, err := s.GetOne(ctx, "a@b.com", a1.ID)
	require.NoError(t, err)
	assert.Equal(t, a1, got)

	_, err = s.GetOne(ctx, "c@d.com", a1.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	deleted, err := s.Delete(ctx, "a@b.com", a1.ID)
	require.NoError(t, err)
	assert.Equal(t, a1, deleted)

	_, err = s.Delete(ctx, "a@b.com", a1.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 2, s.Len())
}

func TestCatalog_LookupMany(t *testing.T) {
	c := NewCatalog(
		domain.CatalogItem{ID: "X1", Code: "C1", Price: decimal.NewFromInt(10)},
		domain.CatalogItem{ID: "X2", Code: "C2", Price: decimal.NewFromInt(15)},
	)

	items, err := c.LookupMany(context.Background(), []string{"X1", "X1", "X9", "X2"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "X1", items[0].ID)
	assert.Equal(t, "X2", items[1].ID)
}

func TestLoadCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id":"X1","productName":"Widget","code":"WID-1","price":10.5,"model":"W"},
		{"id":"X2","productName":"Gadget","code":"GAD-2","price":"15.00","model":"G"}
	]`), 0o600))

	c, err := LoadCatalogFile(path)
	require.NoError(t, err)

	items, err := c.LookupMany(context.Background(), []string{"X1", "X2"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "WID-1", items[0].Code)
	assert.True(t, decimal.RequireFromString("10.5").Equal(items[0].Price))
	assert.True(t, decimal.RequireFromString("15").Equal(items[1].Price))

	_, err = LoadCatalogFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	precise := filepath.Join(t.TempDir(), "precise.json")
	require.NoError(t, os.WriteFile(precise, []byte(`[{"id":"X1","code":"C1","price":"0.335"}]`), 0o600))
	_, err = LoadCatalogFile(precise)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
