package app

import (
	"context"
	"fmt"

	"github.com/dejobratic/storefront/internal/inventory/domain"
	"github.com/dejobratic/storefront/internal/inventory/ports"
)

// Catalog answers product lookups for order snapshots.
type Catalog struct {
	repo ports.ProductRepository
}

func NewCatalog(repo ports.ProductRepository) *Catalog {
	return &Catalog{repo: repo}
}

// Products returns the known products among ids keyed by id.
func (c *Catalog) Products(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	products, err := c.repo.GetByIDs(ctx, unique(ids))
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}

	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID, nil
}

func unique(ids []string) []string {
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
