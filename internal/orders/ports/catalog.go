package ports

import (
	"context"

	"github.com/shopspring/decimal"
)

// ProductSnapshot is the catalog data copied into a line item.
type ProductSnapshot struct {
	ID       string
	Name     string
	SKU      string
	Price    decimal.Decimal
	ImageURL string
}

// ProductCatalog resolves products for line-item snapshots. Unknown ids are
// simply absent from the result.
type ProductCatalog interface {
	Snapshot(ctx context.Context, productIDs []string) (map[string]ProductSnapshot, error)
}
