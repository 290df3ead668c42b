package memory

import (
	"context"
	"sync"

	"github.com/dejobratic/storefront/internal/inventory/domain"
)

type adjustmentKey struct {
	orderID   string
	productID string
}

// Repository is an in-memory product store. The mutex makes each
// conditional decrement atomic the way a row lock would.
type Repository struct {
	mu          sync.Mutex
	products    map[string]domain.Product
	adjustments map[adjustmentKey]int
}

func NewRepository(products ...domain.Product) *Repository {
	r := &Repository{
		products:    make(map[string]domain.Product, len(products)),
		adjustments: make(map[adjustmentKey]int),
	}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

// Put inserts or replaces a product.
func (r *Repository) Put(p domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = p
}

func (r *Repository) GetByIDs(_ context.Context, ids []string) ([]domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *Repository) Stock(_ context.Context, productID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[productID]
	if !ok {
		return 0, domain.ErrProductNotFound
	}
	return p.Stock, nil
}

func (r *Repository) DecrementStock(_ context.Context, productID string, quantity int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.decrement(productID, quantity), nil
}

func (r *Repository) DecrementForOrder(_ context.Context, orderID, productID string, quantity int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := adjustmentKey{orderID: orderID, productID: productID}
	if _, done := r.adjustments[key]; done {
		return true, nil
	}
	if !r.decrement(productID, quantity) {
		return false, nil
	}
	r.adjustments[key] = quantity
	return true, nil
}

func (r *Repository) decrement(productID string, quantity int) bool {
	p, ok := r.products[productID]
	if !ok || p.Stock < quantity {
		return false
	}
	p.Stock -= quantity
	r.products[productID] = p
	return true
}
