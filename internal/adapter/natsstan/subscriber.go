package natsstan

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	stan "github.com/nats-io/stan.go"

	"github.com/example/order-events-service/internal/domain"
	"github.com/example/order-events-service/internal/metrics"
)

// Subscriber — durable queue-подписка на события заказов в NATS Streaming.
// Каждое сообщение передаётся обработчику пачкой из одного элемента и
// подтверждается только при успехе; иначе сервер доставит его повторно после AckWait.
// После MaxAttempts неудачных попыток сообщение логируется и подтверждается.
type Subscriber struct {
	ClusterID   string
	ClientID    string
	URL         string
	Subject     string
	Durable     string
	QueueGroup  string
	AckWait     time.Duration
	Timeout     time.Duration
	MaxAttempts int
	Logger      *slog.Logger
}

func (s *Subscriber) Subscribe(ctx context.Context, handler domain.BatchHandler) error {
	clientID := s.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("order-events-ingestor-%d", time.Now().UnixNano())
	}
	log := s.logger().With("subject", s.Subject, "durable", s.Durable)

	sc, err := stan.Connect(s.ClusterID, clientID, stan.NatsURL(s.URL))
	if err != nil {
		return fmt.Errorf("stan connect: %w", err)
	}
	go func() {
		<-ctx.Done()
		_ = sc.Close()
	}()

	_, err = sc.QueueSubscribe(s.Subject, s.queueGroup(), func(m *stan.Msg) {
		d := toDelivery(m)
		hCtx, cancel := context.WithTimeout(ctx, s.timeout())
		defer cancel()
		if err := handler(hCtx, []domain.Delivery{d})[d.MessageID]; err != nil {
			if !s.exhausted(m) {
				// не подтверждаем, даём сообщению переотправиться
				log.WarnContext(ctx, "delivery not acked", "message_id", d.MessageID, "error", err)
				return
			}
			metrics.DeadLettered.WithLabelValues("stan").Inc()
			log.ErrorContext(ctx, "delivery dead-lettered", "message_id", d.MessageID,
				"attempts", m.RedeliveryCount+1, "error", err)
		}
		if err := m.Ack(); err != nil {
			log.WarnContext(ctx, "ack failed", "message_id", d.MessageID, "error", err)
		}
	}, stan.DurableName(s.Durable), stan.SetManualAckMode(), stan.AckWait(s.ackWait()), stan.DeliverAllAvailable())
	if err != nil {
		_ = sc.Close()
		return fmt.Errorf("stan subscribe %s: %w", s.Subject, err)
	}
	log.InfoContext(ctx, "subscribed")
	return nil
}

// toDelivery — идентификатор сообщения "<subject>:<sequence>".
func toDelivery(m *stan.Msg) domain.Delivery {
	return domain.Delivery{
		MessageID:   m.Subject + ":" + strconv.FormatUint(m.Sequence, 10),
		Body:        m.Data,
		Redelivered: m.Redelivered,
	}
}

// exhausted — текущая попытка последняя из MaxAttempts.
func (s *Subscriber) exhausted(m *stan.Msg) bool {
	return int(m.RedeliveryCount)+1 >= s.maxAttempts()
}

func (s *Subscriber) maxAttempts() int {
	if s.MaxAttempts > 0 {
		return s.MaxAttempts
	}
	return 5
}

func (s *Subscriber) queueGroup() string {
	if s.QueueGroup != "" {
		return s.QueueGroup
	}
	return "order-events-ingestors"
}

func (s *Subscriber) ackWait() time.Duration {
	if s.AckWait > 0 {
		return s.AckWait
	}
	return 10 * time.Second
}

func (s *Subscriber) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return 5 * time.Second
}

func (s *Subscriber) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

var _ domain.MessageSubscriber = (*Subscriber)(nil)
