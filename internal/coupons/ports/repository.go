package ports

import (
	"context"

	"github.com/dejobratic/storefront/internal/coupons/domain"
)

// CouponRepository reads coupons and records their redemptions.
type CouponRepository interface {
	// GetByCode returns domain.ErrNotFound for unknown codes.
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)
	// Redeem records that orderID used the coupon and increments its usage
	// count in one step. It returns false when the order had already redeemed
	// it, and domain.ErrLimitExceeded when the count is at the limit.
	Redeem(ctx context.Context, code, orderID string) (bool, error)
	// Redeemed reports whether orderID already holds a redemption of code.
	Redeemed(ctx context.Context, code, orderID string) (bool, error)
}
