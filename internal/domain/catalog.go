package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PriceScale — число знаков после запятой в ценах. Цены с большей точностью
// отвергаются при загрузке каталога, иначе округлённые при выводе позиции
// могли бы не сходиться с итогом.
const PriceScale = 2

// CatalogItem — товар каталога; для заказов только чтение.
type CatalogItem struct {
	ID    string          `json:"id"`
	Name  string          `json:"productName"`
	Code  string          `json:"code"`
	Price decimal.Decimal `json:"price"`
	Model string          `json:"model"`
}

// Validate проверяет товар при загрузке каталога.
func (it CatalogItem) Validate() error {
	if it.ID == "" {
		return fmt.Errorf("%w: catalog item without id", ErrValidation)
	}
	if it.Price.IsNegative() {
		return fmt.Errorf("%w: negative price for %s", ErrValidation, it.ID)
	}
	if !it.Price.Equal(it.Price.Round(PriceScale)) {
		return fmt.Errorf("%w: price %s of %s has more than %d decimals", ErrValidation, it.Price, it.ID, PriceScale)
	}
	return nil
}

// DistinctIDs убирает повторы, сохраняя порядок первого вхождения.
func DistinctIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
