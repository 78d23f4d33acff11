package usecase

import (
	"context"

	"github.com/example/order-events-service/internal/domain"
)

// NoopPublisher используется, когда транспорт событий отключён.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, domain.Envelope) error { return nil }

var _ domain.EventPublisher = NoopPublisher{}
