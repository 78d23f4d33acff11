package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOrder() Order {
	o := NewOrder("a@b.com", Shipping{Type: ShippingStandard, Carrier: CarrierUPS}, PaymentCreditCard, []CatalogItem{
		{ID: "X1", Code: "X1", Price: decimal.RequireFromString("10.00")},
		{ID: "X2", Code: "X2", Price: decimal.RequireFromString("15.00")},
	})
	o.ID = "7f1b0a3e-0000-4000-8000-000000000001"
	o.CreatedAt = time.UnixMilli(1700000000000)
	return o
}

func TestNewEnvelope_RoundTrip(t *testing.T) {
	env, err := NewEnvelope(EventOrderCreated, sampleOrder(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, EventOrderCreated, env.EventType)

	raw, err := json.Marshal(env)
	require.NoError(t, err)

	decoded, err := DecodeEnvelope(raw)
	require.NoError(t, err)
	ev, err := decoded.Decode()
	require.NoError(t, err)

	assert.Equal(t, "a@b.com", ev.Email)
	assert.Equal(t, "7f1b0a3e-0000-4000-8000-000000000001", ev.OrderID)
	assert.Equal(t, EventShipping{Type: "STANDARD", Carrier: "UPS"}, ev.Shipping)
	assert.Equal(t, json.Number("25.00"), ev.Billing.TotalPrice)
	assert.Equal(t, []string{"X1", "X2"}, ev.ProductCodes)
	assert.Equal(t, "req-1", ev.RequestID)
}

func TestDecodeEnvelope_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{{`},
		{"unknown kind", `{"eventType":"ORDER_SHIPPED","data":"{}"}`},
		{"missing kind", `{"data":"{}"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEnvelope([]byte(tt.raw))
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	env := Envelope{EventType: EventOrderDeleted, Data: `{"email":"a@b.com"}`}
	_, err := env.Decode()
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNewEventRecord_Keys(t *testing.T) {
	env, err := NewEnvelope(EventOrderDeleted, sampleOrder(), "req-9")
	require.NoError(t, err)
	ev, err := env.Decode()
	require.NoError(t, err)

	rec := NewEventRecord(env, ev, "orders:42", time.UnixMilli(1700000000123))

	assert.Equal(t, "#ORDER_7f1b0a3e-0000-4000-8000-000000000001", rec.PK)
	assert.Equal(t, "ORDER_DELETED#1700000000123", rec.SK)
	assert.Equal(t, int64(1700000000123), rec.CreatedAt)
	assert.Equal(t, "a@b.com", rec.Email)
	assert.Equal(t, "req-9", rec.RequestID)
	assert.Equal(t, EventOrderDeleted, rec.EventType)
	assert.Equal(t, EventInfo{
		OrderID:      "7f1b0a3e-0000-4000-8000-000000000001",
		ProductCodes: []string{"X1", "X2"},
		MessageID:    "orders:42",
	}, rec.Info)
}
