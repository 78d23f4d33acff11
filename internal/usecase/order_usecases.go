package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/order-events-service/internal/domain"
	"github.com/example/order-events-service/internal/metrics"
)

var tracer = otel.Tracer("github.com/example/order-events-service/internal/usecase")

// CreationState — состояние процесса создания заказа.
type CreationState string

const (
	StateValidating      CreationState = "VALIDATING"
	StatePersistingOrder CreationState = "PERSISTING_ORDER"
	StatePublishingEvent CreationState = "PUBLISHING_EVENT"
	StateDone            CreationState = "DONE"
	StateRejected        CreationState = "REJECTED"
	StateFaulted         CreationState = "FAULTED"
)

// MutationResult — результат успешной записи. Ошибка публикации не фатальна
// и передаётся отдельно от основного результата.
type MutationResult struct {
	Order      domain.Order
	State      CreationState
	PublishErr error
}

// Published сообщает, принял ли транспорт событие.
func (r MutationResult) Published() bool { return r.PublishErr == nil }

// CreateOrderCommand — входные данные создания заказа в сыром виде.
type CreateOrderCommand struct {
	Email        string
	ProductIDs   []string
	Payment      string
	ShippingType string
	Carrier      string
	RequestID    string
}

type parsedCreate struct {
	email    string
	ids      []string
	payment  domain.PaymentType
	shipping domain.Shipping
}

func (c CreateOrderCommand) parse() (parsedCreate, error) {
	email := strings.TrimSpace(c.Email)
	if email == "" {
		return parsedCreate{}, fmt.Errorf("%w: email is required", domain.ErrValidation)
	}
	if len(c.ProductIDs) == 0 {
		return parsedCreate{}, fmt.Errorf("%w: at least one product id is required", domain.ErrValidation)
	}
	for _, id := range c.ProductIDs {
		if strings.TrimSpace(id) == "" {
			return parsedCreate{}, fmt.Errorf("%w: empty product id", domain.ErrValidation)
		}
	}
	payment, err := domain.ParsePaymentType(c.Payment)
	if err != nil {
		return parsedCreate{}, err
	}
	st, err := domain.ParseShippingType(c.ShippingType)
	if err != nil {
		return parsedCreate{}, err
	}
	carrier, err := domain.ParseCarrierType(c.Carrier)
	if err != nil {
		return parsedCreate{}, err
	}
	return parsedCreate{
		email:    email,
		ids:      domain.DistinctIDs(c.ProductIDs),
		payment:  payment,
		shipping: domain.Shipping{Type: st, Carrier: carrier},
	}, nil
}

// CreateOrder — проверить товары, сохранить заказ и опубликовать ORDER_CREATED.
type CreateOrder struct {
	Catalog   domain.CatalogLookup
	Store     domain.OrderStore
	Publisher domain.EventPublisher
	Timeout   time.Duration
	Logger    *slog.Logger
}

func (uc CreateOrder) Execute(ctx context.Context, cmd CreateOrderCommand) (MutationResult, error) {
	ctx, span := tracer.Start(ctx, "CreateOrder")
	defer span.End()
	log := loggerOr(uc.Logger).With("request_id", cmd.RequestID)

	in, err := cmd.parse()
	if err != nil {
		metrics.OrdersRejected.WithLabelValues("validation").Inc()
		return fail(span, StateRejected, err)
	}
	span.SetAttributes(attribute.String("order.email", in.email), attribute.Int("order.products", len(in.ids)))

	// Validating
	lookupCtx, cancel := withTimeout(ctx, uc.Timeout)
	items, err := uc.Catalog.LookupMany(lookupCtx, in.ids)
	cancel()
	if err != nil {
		metrics.OrdersRejected.WithLabelValues("catalog_unavailable").Inc()
		log.ErrorContext(ctx, "catalog lookup failed", "state", StateFaulted, "error", err)
		return fail(span, StateFaulted, asStorage("lookup products", err))
	}
	if len(resolvedIDs(items, in.ids)) < len(in.ids) {
		metrics.OrdersRejected.WithLabelValues("unresolvable_items").Inc()
		log.InfoContext(ctx, "order rejected", "state", StateRejected, "requested", len(in.ids), "found", len(items))
		return fail(span, StateRejected, domain.ErrCatalogMismatch)
	}

	// PersistingOrder
	draft := domain.NewOrder(in.email, in.shipping, in.payment, items)
	storeCtx, cancel := withTimeout(ctx, uc.Timeout)
	order, err := uc.Store.Create(storeCtx, draft)
	cancel()
	if err != nil {
		metrics.OrdersRejected.WithLabelValues("storage").Inc()
		log.ErrorContext(ctx, "order not persisted, no event emitted", "state", StateFaulted, "error", err)
		return fail(span, StateFaulted, asStorage("create order", err))
	}
	metrics.OrdersCreated.Inc()
	span.SetAttributes(attribute.String("order.id", order.ID))

	// PublishingEvent
	pubErr := publish(ctx, uc.Publisher, uc.Timeout, log, domain.EventOrderCreated, order, cmd.RequestID)

	log.InfoContext(ctx, "order created", "state", StateDone, "order_id", order.ID, "email", order.Email,
		"total", order.Billing.TotalPrice.StringFixed(2), "published", pubErr == nil)
	return MutationResult{Order: order, State: StateDone, PublishErr: pubErr}, nil
}

// CancelOrder — удалить заказ и опубликовать ORDER_DELETED с прежним значением.
type CancelOrder struct {
	Store     domain.OrderStore
	Publisher domain.EventPublisher
	Timeout   time.Duration
	Logger    *slog.Logger
}

func (uc CancelOrder) Execute(ctx context.Context, email, orderID, requestID string) (MutationResult, error) {
	ctx, span := tracer.Start(ctx, "CancelOrder")
	defer span.End()
	log := loggerOr(uc.Logger).With("request_id", requestID)

	email, orderID = strings.TrimSpace(email), strings.TrimSpace(orderID)
	if email == "" || orderID == "" {
		return fail(span, StateRejected, fmt.Errorf("%w: email and orderId are required", domain.ErrValidation))
	}
	span.SetAttributes(attribute.String("order.email", email), attribute.String("order.id", orderID))

	storeCtx, cancel := withTimeout(ctx, uc.Timeout)
	prior, err := uc.Store.Delete(storeCtx, email, orderID)
	cancel()
	if errors.Is(err, domain.ErrNotFound) {
		log.InfoContext(ctx, "cancel of unknown order", "order_id", orderID, "email", email)
		return fail(span, StateRejected, err)
	}
	if err != nil {
		log.ErrorContext(ctx, "order delete failed", "order_id", orderID, "error", err)
		return fail(span, StateFaulted, asStorage("delete order", err))
	}
	metrics.OrdersCancelled.Inc()

	pubErr := publish(ctx, uc.Publisher, uc.Timeout, log, domain.EventOrderDeleted, prior, requestID)

	log.InfoContext(ctx, "order cancelled", "order_id", prior.ID, "email", prior.Email, "published", pubErr == nil)
	return MutationResult{Order: prior, State: StateDone, PublishErr: pubErr}, nil
}

// GetOrders — чтение заказов напрямую из хранилища.
type GetOrders struct {
	Store   domain.OrderStore
	Timeout time.Duration
}

func (uc GetOrders) All(ctx context.Context) ([]domain.Order, error) {
	ctx, cancel := withTimeout(ctx, uc.Timeout)
	defer cancel()
	orders, err := uc.Store.GetAll(ctx)
	if err != nil {
		return nil, asStorage("list orders", err)
	}
	return orders, nil
}

func (uc GetOrders) ByCustomer(ctx context.Context, email string) ([]domain.Order, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", domain.ErrValidation)
	}
	ctx, cancel := withTimeout(ctx, uc.Timeout)
	defer cancel()
	orders, err := uc.Store.GetByCustomer(ctx, email)
	if err != nil {
		return nil, asStorage("list customer orders", err)
	}
	return orders, nil
}

func (uc GetOrders) One(ctx context.Context, email, orderID string) (domain.Order, error) {
	email, orderID = strings.TrimSpace(email), strings.TrimSpace(orderID)
	if email == "" || orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: email and orderId are required", domain.ErrValidation)
	}
	ctx, cancel := withTimeout(ctx, uc.Timeout)
	defer cancel()
	o, err := uc.Store.GetOne(ctx, email, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Order{}, err
		}
		return domain.Order{}, asStorage("get order", err)
	}
	return o, nil
}

// publish отправляет событие после подтверждённой записи. Ошибка только логируется:
// заказ уже сохранён и является источником истины.
func publish(ctx context.Context, p domain.EventPublisher, timeout time.Duration, log *slog.Logger,
	kind domain.EventKind, o domain.Order, requestID string) error {
	env, err := domain.NewEnvelope(kind, o, requestID)
	if err == nil {
		// запрос клиента может завершиться раньше, публикация не должна отменяться вместе с ним
		pubCtx, cancel := withTimeout(context.WithoutCancel(ctx), timeout)
		err = p.Publish(pubCtx, env)
		cancel()
	}
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrPublish) {
		err = fmt.Errorf("%w: %v", domain.ErrPublish, err)
	}
	metrics.PublishFailures.WithLabelValues(string(kind)).Inc()
	log.WarnContext(ctx, "order event not published", "event_type", kind, "order_id", o.ID, "error", err)
	return err
}

// resolvedIDs — множество запрошенных идентификаторов, реально найденных в каталоге.
func resolvedIDs(items []domain.CatalogItem, requested []string) map[string]struct{} {
	want := make(map[string]struct{}, len(requested))
	for _, id := range requested {
		want[id] = struct{}{}
	}
	got := make(map[string]struct{}, len(items))
	for _, it := range items {
		if _, ok := want[it.ID]; ok {
			got[it.ID] = struct{}{}
		}
	}
	return got
}

func asStorage(op string, err error) error {
	if errors.Is(err, domain.ErrStorage) || errors.Is(err, domain.ErrValidation) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrStorage, err)
}

func fail(span trace.Span, state CreationState, err error) (MutationResult, error) {
	span.SetAttributes(attribute.String("order.state", string(state)))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return MutationResult{State: state}, err
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}
