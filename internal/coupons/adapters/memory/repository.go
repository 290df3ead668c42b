package memory

import (
	"context"
	"sync"

	"github.com/dejobratic/storefront/internal/coupons/domain"
)

type redemptionKey struct {
	code    string
	orderID string
}

type Repository struct {
	mu          sync.Mutex
	coupons     map[string]domain.Coupon
	redemptions map[redemptionKey]struct{}
}

func NewRepository(coupons ...domain.Coupon) *Repository {
	r := &Repository{
		coupons:     make(map[string]domain.Coupon, len(coupons)),
		redemptions: make(map[redemptionKey]struct{}),
	}
	for _, c := range coupons {
		r.coupons[domain.NormalizeCode(c.Code)] = c
	}
	return r
}

// Put inserts or replaces a coupon.
func (r *Repository) Put(c domain.Coupon) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coupons[domain.NormalizeCode(c.Code)] = c
}

func (r *Repository) GetByCode(_ context.Context, code string) (*domain.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.coupons[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (r *Repository) Redeemed(_ context.Context, code, orderID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, done := r.redemptions[redemptionKey{code: code, orderID: orderID}]
	return done, nil
}

func (r *Repository) Redeem(_ context.Context, code, orderID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.coupons[code]
	if !ok {
		return false, domain.ErrNotFound
	}
	key := redemptionKey{code: code, orderID: orderID}
	if _, done := r.redemptions[key]; done {
		return false, nil
	}
	if c.UsedCount >= c.UsageLimit {
		return false, domain.ErrLimitExceeded
	}

	c.UsedCount++
	r.coupons[code] = c
	r.redemptions[key] = struct{}{}
	return true, nil
}
