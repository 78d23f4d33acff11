package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/order-events-service/internal/config"
	"github.com/example/order-events-service/internal/domain"
)

func TestReadEnvelope(t *testing.T) {
	env, err := readEnvelope(strings.NewReader(`{"email":"a@b.c","orderId":"o-1","billing":{"payment":"PAYPAL","totalPrice":25.00}}`), "order_updated")
	require.NoError(t, err)
	assert.Equal(t, domain.EventOrderUpdated, env.EventType)

	ev, err := env.Decode()
	require.NoError(t, err)
	assert.Equal(t, "o-1", ev.OrderID)
	assert.Equal(t, "25.00", ev.Billing.TotalPrice.String())
	assert.Equal(t, []string{}, ev.ProductCodes)
}

func TestReadEnvelope_Rejects(t *testing.T) {
	_, err := readEnvelope(strings.NewReader(`{"orderId":"o-1"}`), "ORDER_SHIPPED")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = readEnvelope(strings.NewReader(`{"email":"a@b.c"}`), "ORDER_CREATED")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = readEnvelope(strings.NewReader(`not json`), "ORDER_CREATED")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestNewPublisher_NeedsBroker(t *testing.T) {
	_, _, err := newPublisher(config.Config{EventTransport: config.TransportNone})
	assert.Error(t, err)

	p, closeFn, err := newPublisher(config.Config{EventTransport: config.TransportKafka, KafkaBrokers: []string{"localhost:9092"}, KafkaTopic: "t"})
	require.NoError(t, err)
	assert.NotNil(t, p)
	assert.NoError(t, closeFn())
}
