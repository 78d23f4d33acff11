package domain

import "context"

// CatalogLookup — порт чтения каталога товаров.
// Отсутствующие идентификаторы не являются ошибкой: результат просто короче.
type CatalogLookup interface {
	LookupMany(ctx context.Context, ids []string) ([]CatalogItem, error)
}

// OrderStore — порт персистентности заказов, ключ (email, id).
type OrderStore interface {
	Create(ctx context.Context, draft Order) (Order, error)
	GetAll(ctx context.Context) ([]Order, error)
	GetByCustomer(ctx context.Context, email string) ([]Order, error)
	GetOne(ctx context.Context, email, id string) (Order, error)
	// Delete удаляет заказ и атомарно возвращает его прежнее значение.
	Delete(ctx context.Context, email, id string) (Order, error)
}

// EventPublisher — порт публикации доменных событий (at-least-once).
type EventPublisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// EventLog — append-only журнал событий по сущностям.
type EventLog interface {
	Append(ctx context.Context, rec EventRecord) error
	ListByEntity(ctx context.Context, pk string) ([]EventRecord, error)
}

// Delivery — одно доставленное транспортом сообщение.
type Delivery struct {
	MessageID   string
	Body        []byte
	Redelivered bool
}

// BatchHandler обрабатывает пачку доставок и возвращает ошибки по MessageID.
// Доставки без ошибки считаются подтверждёнными.
type BatchHandler func(ctx context.Context, batch []Delivery) map[string]error

// MessageSubscriber — порт подписчика на события заказов.
type MessageSubscriber interface {
	// Subscribe регистрирует обработчик; ack/повторные доставки реализует адаптер.
	Subscribe(ctx context.Context, handler BatchHandler) error
}
