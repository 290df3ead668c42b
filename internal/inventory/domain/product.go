package domain

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dejobratic/storefront/internal/apperr"
)

// Product is the inventory-relevant slice of a catalog entry.
type Product struct {
	ID       string          `json:"id"`
	SKU      string          `json:"sku"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"imageUrl"`
	Stock    int             `json:"stock"`
}

var (
	ErrProductNotFound = apperr.New(apperr.KindNotFound, "product not found")
	ErrInvalidQuantity = apperr.Validation("quantity must be positive",
		apperr.FieldViolation{Field: "quantity", Rule: "gt"})
	// ErrInsufficientStock matches every *StockError through errors.Is.
	ErrInsufficientStock = apperr.New(apperr.KindInsufficientStock, "insufficient stock")
)

// StockError reports which product could not cover the requested quantity.
type StockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error {
	return ErrInsufficientStock
}
