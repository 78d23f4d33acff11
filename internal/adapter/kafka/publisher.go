package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/example/order-events-service/internal/domain"
)

// Publisher пишет конверты событий в топик Kafka. Ключ сообщения равен id заказа,
// поэтому события одного заказа попадают в одну партицию.
type Publisher struct {
	w *kafkago.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{w: &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}}
}

func (p *Publisher) Publish(ctx context.Context, env domain.Envelope) error {
	msg, err := toMessage(env)
	if err != nil {
		return err
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("%w: kafka write %s: %v", domain.ErrPublish, env.EventType, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.w.Close()
}

func toMessage(env domain.Envelope) (kafkago.Message, error) {
	ev, err := env.Decode()
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("%w: %v", domain.ErrPublish, err)
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("%w: marshal envelope: %v", domain.ErrPublish, err)
	}
	return kafkago.Message{
		Key:   []byte(ev.OrderID),
		Value: raw,
		Headers: []kafkago.Header{
			{Key: "eventType", Value: []byte(env.EventType)},
			{Key: "requestId", Value: []byte(ev.RequestID)},
		},
	}, nil
}

var _ domain.EventPublisher = (*Publisher)(nil)
