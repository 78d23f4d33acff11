package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentType — способ оплаты заказа.
type PaymentType string

const (
	PaymentCreditCard PaymentType = "CREDIT_CARD"
	PaymentPaypal     PaymentType = "PAYPAL"
	PaymentDebitCard  PaymentType = "DEBIT_CARD"
)

func (p PaymentType) String() string { return string(p) }

func (p PaymentType) Valid() bool {
	switch p {
	case PaymentCreditCard, PaymentPaypal, PaymentDebitCard:
		return true
	}
	return false
}

// ParsePaymentType превращает строку запроса в закрытый набор значений.
func ParsePaymentType(s string) (PaymentType, error) {
	p := PaymentType(strings.TrimSpace(s))
	if !p.Valid() {
		return "", fmt.Errorf("%w: unknown payment %q", ErrValidation, s)
	}
	return p, nil
}

// ShippingType — тип доставки.
type ShippingType string

const (
	ShippingStandard ShippingType = "STANDARD"
	ShippingExpress  ShippingType = "EXPRESS"
)

func (t ShippingType) String() string { return string(t) }

func (t ShippingType) Valid() bool {
	return t == ShippingStandard || t == ShippingExpress
}

func ParseShippingType(s string) (ShippingType, error) {
	t := ShippingType(strings.TrimSpace(s))
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown shipping type %q", ErrValidation, s)
	}
	return t, nil
}

// CarrierType — служба доставки.
type CarrierType string

const (
	CarrierUPS   CarrierType = "UPS"
	CarrierFedex CarrierType = "FEDEX"
	CarrierUSPS  CarrierType = "USPS"
)

func (c CarrierType) String() string { return string(c) }

func (c CarrierType) Valid() bool {
	switch c {
	case CarrierUPS, CarrierFedex, CarrierUSPS:
		return true
	}
	return false
}

func ParseCarrierType(s string) (CarrierType, error) {
	c := CarrierType(strings.TrimSpace(s))
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown carrier %q", ErrValidation, s)
	}
	return c, nil
}

type Shipping struct {
	Type    ShippingType `json:"type"`
	Carrier CarrierType  `json:"carrier"`
}

type Billing struct {
	Payment    PaymentType     `json:"payment"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

// LineItem — снимок товара на момент создания заказа.
type LineItem struct {
	Code  string          `json:"code"`
	Price decimal.Decimal `json:"price"`
}

// Order — доменная сущность заказа.
type Order struct {
	Email     string     `json:"email"`
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"createdAt"`
	Shipping  Shipping   `json:"shipping"`
	Billing   Billing    `json:"billing"`
	Products  []LineItem `json:"products"`
}

// NewOrder — собрать черновик заказа из найденных товаров каталога.
// Идентификатор и время создания назначает хранилище.
func NewOrder(email string, shipping Shipping, payment PaymentType, items []CatalogItem) Order {
	products := make([]LineItem, 0, len(items))
	total := decimal.Zero
	for _, it := range items {
		products = append(products, LineItem{Code: it.Code, Price: it.Price})
		total = total.Add(it.Price)
	}
	return Order{
		Email:    email,
		Shipping: shipping,
		Billing:  Billing{Payment: payment, TotalPrice: total},
		Products: products,
	}
}

// ProductCodes — коды позиций заказа в исходном порядке.
func (o Order) ProductCodes() []string {
	codes := make([]string, len(o.Products))
	for i, p := range o.Products {
		codes[i] = p.Code
	}
	return codes
}

// Validate проверяет инварианты заказа перед записью.
func (o Order) Validate() error {
	if strings.TrimSpace(o.Email) == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	if len(o.Products) == 0 {
		return fmt.Errorf("%w: order has no products", ErrValidation)
	}
	if !o.Shipping.Type.Valid() || !o.Shipping.Carrier.Valid() || !o.Billing.Payment.Valid() {
		return fmt.Errorf("%w: shipping or billing outside of known values", ErrValidation)
	}
	sum := decimal.Zero
	for _, p := range o.Products {
		if p.Price.IsNegative() {
			return fmt.Errorf("%w: negative price for %s", ErrValidation, p.Code)
		}
		sum = sum.Add(p.Price)
	}
	if !sum.Equal(o.Billing.TotalPrice) {
		return fmt.Errorf("%w: total %s does not match products sum %s", ErrValidation, o.Billing.TotalPrice, sum)
	}
	return nil
}
