package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/example/order-events-service/internal/adapter/kafka"
	"github.com/example/order-events-service/internal/adapter/natsstan"
	"github.com/example/order-events-service/internal/config"
	"github.com/example/order-events-service/internal/domain"
	"github.com/example/order-events-service/internal/telemetry"
)

// Читает OrderEvent в JSON из stdin и публикует его конвертом выбранного типа.
//
//	echo '{"email":"a@b.c","orderId":"o-1"}' | publisher -type ORDER_UPDATED
func main() {
	kind := flag.String("type", string(domain.EventOrderCreated), "event type: ORDER_CREATED, ORDER_UPDATED or ORDER_DELETED")
	flag.Parse()

	logger := telemetry.InitLogger("order-publisher")
	cfg, err := config.Load("order-publisher")
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	env, err := readEnvelope(os.Stdin, *kind)
	if err != nil {
		logger.Error("read event", "error", err)
		os.Exit(1)
	}

	pub, closeFn, err := newPublisher(cfg)
	if err != nil {
		logger.Error("connect", "error", err)
		os.Exit(1)
	}
	defer func() { _ = closeFn() }()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.CallTimeout+5*time.Second)
	defer cancel()
	if err := pub.Publish(ctx, env); err != nil {
		logger.Error("publish", "error", err)
		os.Exit(1)
	}
	logger.Info("published", "event_type", env.EventType, "bytes", len(env.Data), "transport", cfg.EventTransport)
}

func readEnvelope(r io.Reader, kind string) (domain.Envelope, error) {
	k := domain.EventKind(strings.ToUpper(strings.TrimSpace(kind)))
	if !k.Valid() {
		return domain.Envelope{}, fmt.Errorf("%w: unknown event type %q", domain.ErrValidation, kind)
	}
	var ev domain.OrderEvent
	if err := json.NewDecoder(r).Decode(&ev); err != nil {
		return domain.Envelope{}, fmt.Errorf("%w: order event: %v", domain.ErrValidation, err)
	}
	if ev.ProductCodes == nil {
		ev.ProductCodes = []string{}
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return domain.Envelope{}, err
	}
	env := domain.Envelope{EventType: k, Data: string(raw)}
	if _, err := env.Decode(); err != nil {
		return domain.Envelope{}, err
	}
	return env, nil
}

func newPublisher(cfg config.Config) (domain.EventPublisher, func() error, error) {
	switch cfg.EventTransport {
	case config.TransportStan:
		p, err := natsstan.NewPublisher(cfg.StanClusterID, cfg.StanClientID, cfg.NatsURL, cfg.StanSubject)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	case config.TransportKafka:
		p := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		return p, p.Close, nil
	default:
		return nil, nil, fmt.Errorf("publisher: EVENT_TRANSPORT %q is not a broker", cfg.EventTransport)
	}
}
