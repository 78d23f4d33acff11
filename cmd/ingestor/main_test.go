package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/order-events-service/internal/adapter/kafka"
	"github.com/example/order-events-service/internal/adapter/natsstan"
	"github.com/example/order-events-service/internal/config"
	"github.com/example/order-events-service/internal/telemetry"
)

func TestNewSubscriber(t *testing.T) {
	logger := telemetry.NewLogger(os.Stderr, 0)

	sub, err := newSubscriber(config.Config{EventTransport: config.TransportStan, StanSubject: "order-events"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &natsstan.Subscriber{}, sub)

	sub, err = newSubscriber(config.Config{EventTransport: config.TransportKafka, KafkaTopic: "order-events"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &kafka.Subscriber{}, sub)

	_, err = newSubscriber(config.Config{EventTransport: config.TransportMemory}, logger)
	assert.Error(t, err)
}
