package adapters

import (
	"context"

	inventory "github.com/dejobratic/storefront/internal/inventory/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

// ProductSource is the inventory lookup the order ledger snapshots from.
type ProductSource interface {
	Products(ctx context.Context, ids []string) (map[string]inventory.Product, error)
}

// InventoryCatalog adapts the inventory catalog to ports.ProductCatalog.
type InventoryCatalog struct {
	source ProductSource
}

func NewInventoryCatalog(source ProductSource) *InventoryCatalog {
	return &InventoryCatalog{source: source}
}

func (c *InventoryCatalog) Snapshot(ctx context.Context, productIDs []string) (map[string]ports.ProductSnapshot, error) {
	products, err := c.source.Products(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	snapshots := make(map[string]ports.ProductSnapshot, len(products))
	for id, p := range products {
		snapshots[id] = ports.ProductSnapshot{
			ID:       p.ID,
			Name:     p.Name,
			SKU:      p.SKU,
			Price:    p.Price,
			ImageURL: p.ImageURL,
		}
	}
	return snapshots, nil
}
