package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// EventKind — тип доменного события заказа.
type EventKind string

const (
	EventOrderCreated EventKind = "ORDER_CREATED"
	EventOrderUpdated EventKind = "ORDER_UPDATED"
	EventOrderDeleted EventKind = "ORDER_DELETED"
)

func (k EventKind) Valid() bool {
	switch k {
	case EventOrderCreated, EventOrderUpdated, EventOrderDeleted:
		return true
	}
	return false
}

// Envelope — внешняя обёртка события: тип + сериализованный payload.
type Envelope struct {
	EventType EventKind `json:"eventType"`
	Data      string    `json:"data"`
}

// EventShipping, EventBilling — представление заказа внутри события.
type EventShipping struct {
	Type    string `json:"type"`
	Carrier string `json:"carrier"`
}

type EventBilling struct {
	Payment    string      `json:"payment"`
	TotalPrice json.Number `json:"totalPrice"`
}

// OrderEvent — доменное событие заказа.
type OrderEvent struct {
	Email        string        `json:"email"`
	OrderID      string        `json:"orderId"`
	Shipping     EventShipping `json:"shipping"`
	Billing      EventBilling  `json:"billing"`
	ProductCodes []string      `json:"productCodes"`
	RequestID    string        `json:"requestId"`
}

// PriceNumber — цена как JSON-число с PriceScale знаками после запятой.
// Цены каталога проверены CatalogItem.Validate, поэтому округления не происходит.
func PriceNumber(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(PriceScale))
}

// NewEnvelope — построить конверт события из сохранённого заказа.
func NewEnvelope(kind EventKind, o Order, requestID string) (Envelope, error) {
	ev := OrderEvent{
		Email:   o.Email,
		OrderID: o.ID,
		Shipping: EventShipping{
			Type:    o.Shipping.Type.String(),
			Carrier: o.Shipping.Carrier.String(),
		},
		Billing: EventBilling{
			Payment:    o.Billing.Payment.String(),
			TotalPrice: PriceNumber(o.Billing.TotalPrice),
		},
		ProductCodes: o.ProductCodes(),
		RequestID:    requestID,
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal order event: %w", err)
	}
	return Envelope{EventType: kind, Data: string(raw)}, nil
}

// DecodeEnvelope разбирает конверт из тела сообщения транспорта.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: envelope: %v", ErrValidation, err)
	}
	if !env.EventType.Valid() {
		return Envelope{}, fmt.Errorf("%w: unknown event type %q", ErrValidation, env.EventType)
	}
	return env, nil
}

// Decode разбирает вложенное доменное событие.
func (e Envelope) Decode() (OrderEvent, error) {
	var ev OrderEvent
	if err := json.Unmarshal([]byte(e.Data), &ev); err != nil {
		return OrderEvent{}, fmt.Errorf("%w: order event: %v", ErrValidation, err)
	}
	if ev.OrderID == "" {
		return OrderEvent{}, fmt.Errorf("%w: order event without orderId", ErrValidation)
	}
	return ev, nil
}

// EventInfo — вложенный блок записи журнала.
type EventInfo struct {
	OrderID      string   `json:"orderId"`
	ProductCodes []string `json:"productCodes"`
	MessageID    string   `json:"messageId"`
}

// EventRecord — неизменяемая запись журнала событий.
type EventRecord struct {
	PK        string    `json:"pk"`
	SK        string    `json:"sk"`
	CreatedAt int64     `json:"createdAt"`
	Email     string    `json:"email"`
	RequestID string    `json:"requestId"`
	EventType EventKind `json:"eventType"`
	Info      EventInfo `json:"info"`
}

// OrderPartitionKey — ключ партиции журнала для заказа.
func OrderPartitionKey(orderID string) string {
	return "#ORDER_" + orderID
}

// NewEventRecord — собрать запись журнала; ingestedAt — время обработки, а не события.
func NewEventRecord(env Envelope, ev OrderEvent, messageID string, ingestedAt time.Time) EventRecord {
	ms := ingestedAt.UnixMilli()
	codes := ev.ProductCodes
	if codes == nil {
		codes = []string{}
	}
	return EventRecord{
		PK:        OrderPartitionKey(ev.OrderID),
		SK:        string(env.EventType) + "#" + strconv.FormatInt(ms, 10),
		CreatedAt: ms,
		Email:     ev.Email,
		RequestID: ev.RequestID,
		EventType: env.EventType,
		Info: EventInfo{
			OrderID:      ev.OrderID,
			ProductCodes: codes,
			MessageID:    messageID,
		},
	}
}
