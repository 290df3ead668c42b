package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dejobratic/storefront/internal/coupons/domain"
	"github.com/dejobratic/storefront/internal/coupons/ports"
)

type Validator struct {
	repo   ports.CouponRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewValidator(repo ports.CouponRepository, logger *slog.Logger) *Validator {
	return &Validator{repo: repo, logger: logger, now: time.Now}
}

// Validate reports the discount code grants on orderValue. Rejections are
// validation errors whose reason is available through domain.Reason.
func (v *Validator) Validate(ctx context.Context, code string, orderValue decimal.Decimal) (domain.Discount, error) {
	code = domain.NormalizeCode(code)
	if code == "" {
		return domain.Discount{}, domain.ErrNotFound
	}

	coupon, err := v.repo.GetByCode(ctx, code)
	if err != nil {
		return domain.Discount{}, fmt.Errorf("get coupon: %w", err)
	}

	return coupon.Apply(orderValue, v.now())
}

// Redeem counts one use of code against orderID. Repeating it for the same
// order changes nothing and reports false.
func (v *Validator) Redeem(ctx context.Context, code, orderID string) (bool, error) {
	code = domain.NormalizeCode(code)

	redeemed, err := v.repo.Redeem(ctx, code, orderID)
	if err != nil {
		return false, fmt.Errorf("redeem coupon: %w", err)
	}
	if !redeemed {
		v.logger.InfoContext(ctx, "coupon already redeemed for order",
			"coupon_code", code,
			"order_id", orderID,
		)
	}
	return redeemed, nil
}

// Redeemed reports whether orderID already used code.
func (v *Validator) Redeemed(ctx context.Context, code, orderID string) (bool, error) {
	redeemed, err := v.repo.Redeemed(ctx, domain.NormalizeCode(code), orderID)
	if err != nil {
		return false, fmt.Errorf("check coupon redemption: %w", err)
	}
	return redeemed, nil
}
