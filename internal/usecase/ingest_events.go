package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/example/order-events-service/internal/domain"
	"github.com/example/order-events-service/internal/metrics"
)

// IngestEvents — записать доставленные события в журнал.
// Дедупликации нет: повторная доставка даёт вторую запись.
type IngestEvents struct {
	Log         domain.EventLog
	Clock       *MonotonicClock
	Concurrency int
	Timeout     time.Duration
	Logger      *slog.Logger
}

// HandleBatch обрабатывает доставки независимо друг от друга и возвращает
// ошибки только для тех, что нужно доставить повторно.
func (uc IngestEvents) HandleBatch(ctx context.Context, batch []domain.Delivery) map[string]error {
	ctx, span := tracer.Start(ctx, "IngestEvents.HandleBatch")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.size", len(batch)))

	var (
		mu     sync.Mutex
		failed = make(map[string]error)
		g      errgroup.Group
	)
	if uc.Concurrency > 0 {
		g.SetLimit(uc.Concurrency)
	}
	for _, d := range batch {
		d := d
		g.Go(func() error {
			if err := uc.ingestOne(ctx, d); err != nil {
				mu.Lock()
				failed[d.MessageID] = err
				mu.Unlock()
			}
			// ошибка одной доставки не должна отменять остальные
			return nil
		})
	}
	_ = g.Wait()

	if len(failed) > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d of %d deliveries failed", len(failed), len(batch)))
	}
	return failed
}

func (uc IngestEvents) ingestOne(ctx context.Context, d domain.Delivery) (err error) {
	ctx, span := tracer.Start(ctx, "IngestEvent")
	defer span.End()
	log := loggerOr(uc.Logger).With("message_id", d.MessageID)
	defer func() {
		if err != nil {
			metrics.IngestFailures.Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			log.WarnContext(ctx, "event not ingested", "redelivered", d.Redelivered, "error", err)
		}
	}()

	env, ev, err := decodeDelivery(d)
	if err != nil {
		// решение об отказе от сообщения принимает адаптер по числу попыток
		metrics.EventsRejected.Inc()
		return fmt.Errorf("%w: decode %s: %v", domain.ErrIngest, d.MessageID, err)
	}

	rec := domain.NewEventRecord(env, ev, d.MessageID, uc.clock().Now())
	span.SetAttributes(attribute.String("event.pk", rec.PK), attribute.String("event.sk", rec.SK))

	appendCtx, cancel := withTimeout(ctx, uc.Timeout)
	defer cancel()
	if err := uc.Log.Append(appendCtx, rec); err != nil {
		if errors.Is(err, domain.ErrIngest) {
			return err
		}
		return fmt.Errorf("%w: append %s/%s: %v", domain.ErrIngest, rec.PK, rec.SK, err)
	}

	metrics.EventsIngested.WithLabelValues(string(rec.EventType)).Inc()
	log.InfoContext(ctx, "event ingested", "pk", rec.PK, "sk", rec.SK, "event_type", rec.EventType,
		"request_id", rec.RequestID, "redelivered", d.Redelivered)
	return nil
}

func decodeDelivery(d domain.Delivery) (domain.Envelope, domain.OrderEvent, error) {
	env, err := domain.DecodeEnvelope(d.Body)
	if err != nil {
		return domain.Envelope{}, domain.OrderEvent{}, err
	}
	ev, err := env.Decode()
	if err != nil {
		return domain.Envelope{}, domain.OrderEvent{}, err
	}
	return env, ev, nil
}

func (uc IngestEvents) clock() *MonotonicClock {
	if uc.Clock != nil {
		return uc.Clock
	}
	return defaultClock
}

var defaultClock = NewMonotonicClock(nil)

var _ domain.BatchHandler = IngestEvents{}.HandleBatch
