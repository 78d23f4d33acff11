package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/order-events-service/internal/domain"
)

func msg(partition int, offset int64) kafkago.Message {
	return kafkago.Message{Topic: "order-events", Partition: partition, Offset: offset}
}

func TestMessageID(t *testing.T) {
	assert.Equal(t, "order-events-2-17", MessageID(msg(2, 17)))
}

func TestCommitPrefix(t *testing.T) {
	batch := []kafkago.Message{msg(0, 1), msg(1, 5), msg(0, 2), msg(1, 6), msg(0, 3), msg(1, 7)}

	tests := []struct {
		name   string
		failed map[string]error
		want   []kafkago.Message
	}{
		{"all ok", nil, []kafkago.Message{msg(0, 3), msg(1, 7)}},
		{"middle of partition 0", map[string]error{"order-events-0-2": errors.New("x")}, []kafkago.Message{msg(0, 1), msg(1, 7)}},
		{"head of partition 1", map[string]error{"order-events-1-5": errors.New("x")}, []kafkago.Message{msg(0, 3)}},
		{"everything failed", map[string]error{
			"order-events-0-1": errors.New("x"),
			"order-events-1-5": errors.New("x"),
		}, []kafkago.Message{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, commitPrefix(batch, tt.failed))
		})
	}
}

func TestToDelivery_MarksRedelivery(t *testing.T) {
	s := &Subscriber{}
	m := msg(0, 9)
	m.Value = []byte("body")
	id := MessageID(m)

	first := s.toDelivery(m)
	assert.False(t, first.Redelivered)
	s.remember([]domain.Delivery{first}, map[string]error{id: errors.New("x")})

	again := s.toDelivery(m)
	assert.True(t, again.Redelivered)
	assert.Equal(t, []byte("body"), again.Body)
	assert.Equal(t, 1, s.attemptsOf(id))

	s.remember([]domain.Delivery{again}, nil)
	assert.False(t, s.toDelivery(m).Redelivered)
	assert.Zero(t, s.attemptsOf(id))
}

func TestDeadLetter_AfterMaxAttempts(t *testing.T) {
	s := &Subscriber{MaxAttempts: 3}
	ctx := context.Background()
	d := domain.Delivery{MessageID: "order-events-0-1"}

	for attempt := 1; attempt < 3; attempt++ {
		failed := s.deadLetter(ctx, map[string]error{d.MessageID: errors.New("bad")},
			map[string]int{d.MessageID: s.attemptsOf(d.MessageID)})
		require.Contains(t, failed, d.MessageID, "attempt %d", attempt)
		s.remember([]domain.Delivery{d}, failed)
	}

	failed := s.deadLetter(ctx, map[string]error{d.MessageID: errors.New("bad")},
		map[string]int{d.MessageID: s.attemptsOf(d.MessageID)})
	assert.Empty(t, failed)
	s.remember([]domain.Delivery{d}, failed)
	assert.Zero(t, s.attemptsOf(d.MessageID))

	batch := []kafkago.Message{msg(0, 1), msg(0, 2)}
	assert.Equal(t, []kafkago.Message{msg(0, 2)}, commitPrefix(batch, failed))
}

func TestNextGeneration_PrunesStaleFailures(t *testing.T) {
	s := &Subscriber{}
	s.remember(nil, map[string]error{"order-events-3-7": errors.New("x")})

	s.nextGeneration()
	s.nextGeneration()
	assert.Equal(t, 1, s.attemptsOf("order-events-3-7"))

	s.nextGeneration()
	assert.Zero(t, s.attemptsOf("order-events-3-7"))
	assert.Empty(t, s.failed)
}

func TestToMessage(t *testing.T) {
	o := domain.NewOrder("a@b.c", domain.Shipping{Type: domain.ShippingExpress, Carrier: domain.CarrierFedex},
		domain.PaymentCreditCard, nil)
	o.ID = "o-1"
	env, err := domain.NewEnvelope(domain.EventOrderCreated, o, "req-1")
	require.NoError(t, err)

	m, err := toMessage(env)
	require.NoError(t, err)
	assert.Equal(t, []byte("o-1"), m.Key)

	var back domain.Envelope
	require.NoError(t, json.Unmarshal(m.Value, &back))
	assert.Equal(t, env, back)

	_, err = toMessage(domain.Envelope{EventType: domain.EventOrderCreated, Data: "{}"})
	assert.ErrorIs(t, err, domain.ErrPublish)
}

func TestSubscribe_RequiresConfig(t *testing.T) {
	err := (&Subscriber{}).Subscribe(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
