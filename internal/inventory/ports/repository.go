package ports

import (
	"context"

	"github.com/dejobratic/storefront/internal/inventory/domain"
)

// ProductRepository stores products and their stock counters.
type ProductRepository interface {
	// GetByIDs returns the products that exist; unknown ids are skipped.
	GetByIDs(ctx context.Context, ids []string) ([]domain.Product, error)
	// Stock returns the current stock or domain.ErrProductNotFound.
	Stock(ctx context.Context, productID string) (int, error)
	// DecrementStock subtracts quantity only while stock covers it. It
	// reports false when no row qualified.
	DecrementStock(ctx context.Context, productID string, quantity int) (bool, error)
	// DecrementForOrder is DecrementStock recorded against orderID. A repeat
	// for the same order and product is a successful no-op.
	DecrementForOrder(ctx context.Context, orderID, productID string, quantity int) (bool, error)
}
