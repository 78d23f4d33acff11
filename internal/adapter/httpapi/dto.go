package httpapi

import (
	"encoding/json"

	"github.com/example/order-events-service/internal/domain"
)

type shippingDTO struct {
	Type    string `json:"type"`
	Carrier string `json:"carrier"`
}

type billingDTO struct {
	Payment    string      `json:"payment"`
	TotalPrice json.Number `json:"totalPrice"`
}

type lineItemDTO struct {
	Code  string      `json:"code"`
	Price json.Number `json:"price"`
}

// orderDTO — публичное представление заказа; createdAt в миллисекундах эпохи.
type orderDTO struct {
	Email     string        `json:"email"`
	ID        string        `json:"id"`
	CreatedAt int64         `json:"createdAt"`
	Billing   billingDTO    `json:"billing"`
	Shipping  shippingDTO   `json:"shipping"`
	Products  []lineItemDTO `json:"products"`
}

type createOrderRequest struct {
	Email      string      `json:"email"`
	ProductIDs []string    `json:"productIds"`
	Payment    string      `json:"payment"`
	Shipping   shippingDTO `json:"shipping"`
}

type errorResponse struct {
	Message string `json:"message"`
}

func toOrderDTO(o domain.Order) orderDTO {
	items := make([]lineItemDTO, 0, len(o.Products))
	for _, p := range o.Products {
		items = append(items, lineItemDTO{Code: p.Code, Price: domain.PriceNumber(p.Price)})
	}
	return orderDTO{
		Email:     o.Email,
		ID:        o.ID,
		CreatedAt: o.CreatedAt.UnixMilli(),
		Billing: billingDTO{
			Payment:    o.Billing.Payment.String(),
			TotalPrice: domain.PriceNumber(o.Billing.TotalPrice),
		},
		Shipping: shippingDTO{Type: o.Shipping.Type.String(), Carrier: o.Shipping.Carrier.String()},
		Products: items,
	}
}

func toOrderDTOs(orders []domain.Order) []orderDTO {
	out := make([]orderDTO, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderDTO(o))
	}
	return out
}
