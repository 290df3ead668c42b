package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dejobratic/storefront/internal/coupons/domain"
	"github.com/dejobratic/storefront/internal/database"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	var c domain.Coupon
	err := r.pool.QueryRow(ctx, `
		SELECT code, type, value, min_order_value, max_discount, expires_at, usage_limit, used_count, active
		FROM coupons
		WHERE code = $1
	`, code).Scan(
		&c.Code, &c.Type, &c.Value, &c.MinOrderValue, &c.MaxDiscount,
		&c.ExpiresAt, &c.UsageLimit, &c.UsedCount, &c.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select coupon: %w", err)
	}
	return &c, nil
}

// Redeem claims the (coupon, order) redemption row and bumps used_count in
// one transaction. The increment is conditional on the limit, so a coupon
// at its limit rolls the claim back.
func (r *Repository) Redeem(ctx context.Context, code, orderID string) (bool, error) {
	var redeemed bool
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		claim, err := tx.Exec(ctx, `
			INSERT INTO coupon_redemptions (coupon_code, order_id)
			VALUES ($1, $2)
			ON CONFLICT (coupon_code, order_id) DO NOTHING
		`, code, orderID)
		if err != nil {
			if database.IsForeignKeyViolation(err) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("insert coupon redemption: %w", err)
		}
		if claim.RowsAffected() == 0 {
			return nil
		}

		tag, err := tx.Exec(ctx, `
			UPDATE coupons
			SET used_count = used_count + 1, updated_at = now()
			WHERE code = $1 AND used_count < usage_limit
		`, code)
		if err != nil {
			return fmt.Errorf("increment coupon usage: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrLimitExceeded
		}
		redeemed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return redeemed, nil
}

func (r *Repository) Redeemed(ctx context.Context, code, orderID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM coupon_redemptions WHERE coupon_code = $1 AND order_id = $2)
	`, code, orderID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("select coupon redemption: %w", err)
	}
	return exists, nil
}
