package natsstan

import (
	"context"
	"encoding/json"
	"fmt"

	stan "github.com/nats-io/stan.go"

	"github.com/example/order-events-service/internal/domain"
)

// Publisher — публикация конвертов событий в канал NATS Streaming.
// Publish возвращается после подтверждения сервера или отмены ctx.
type Publisher struct {
	conn    stan.Conn
	subject string
}

func NewPublisher(clusterID, clientID, url, subject string) (*Publisher, error) {
	sc, err := stan.Connect(clusterID, clientID, stan.NatsURL(url))
	if err != nil {
		return nil, fmt.Errorf("%w: stan connect: %v", domain.ErrPublish, err)
	}
	return &Publisher{conn: sc, subject: subject}, nil
}

func (p *Publisher) Publish(ctx context.Context, env domain.Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("%w: marshal envelope: %v", domain.ErrPublish, err)
	}
	acked := make(chan error, 1)
	if _, err := p.conn.PublishAsync(p.subject, raw, func(_ string, err error) { acked <- err }); err != nil {
		return fmt.Errorf("%w: publish %s: %v", domain.ErrPublish, env.EventType, err)
	}
	select {
	case err := <-acked:
		if err != nil {
			return fmt.Errorf("%w: publish %s: %v", domain.ErrPublish, env.EventType, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: publish %s: %v", domain.ErrPublish, env.EventType, ctx.Err())
	}
}

func (p *Publisher) Close() error {
	return p.conn.Close()
}

var _ domain.EventPublisher = (*Publisher)(nil)
