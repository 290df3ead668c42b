package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dejobratic/storefront/internal/database"
	"github.com/dejobratic/storefront/internal/payments/domain"
	"github.com/dejobratic/storefront/internal/payments/ports"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, record domain.IntentRecord) error {
	notes := record.Notes
	if notes == nil {
		notes = map[string]string{}
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO payment_intents (
			id, user_id, intent_id, amount, currency, status, receipt, notes, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		record.ID,
		record.UserID,
		record.IntentID,
		record.Amount,
		record.Currency,
		record.Status,
		record.Receipt,
		notes,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err, "") {
			return ports.ErrDuplicateIntent
		}
		return fmt.Errorf("insert payment intent: %w", err)
	}
	return nil
}

func (r *Repository) GetByIntentID(ctx context.Context, intentID string) (*domain.IntentRecord, error) {
	var (
		record    domain.IntentRecord
		paymentID *string
		signature *string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, intent_id, amount, currency, status, receipt, notes,
		       payment_id, signature, created_at, updated_at
		FROM payment_intents
		WHERE intent_id = $1
	`, intentID).Scan(
		&record.ID,
		&record.UserID,
		&record.IntentID,
		&record.Amount,
		&record.Currency,
		&record.Status,
		&record.Receipt,
		&record.Notes,
		&paymentID,
		&signature,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrIntentNotFound
		}
		return nil, fmt.Errorf("select payment intent: %w", err)
	}
	if paymentID != nil {
		record.PaymentID = *paymentID
	}
	if signature != nil {
		record.Signature = *signature
	}
	return &record, nil
}

func (r *Repository) MarkCompleted(ctx context.Context, intentID, paymentID, signature string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payment_intents
		SET status = 'completed', payment_id = $2, signature = $3, updated_at = $4
		WHERE intent_id = $1 AND status = 'created'
	`, intentID, paymentID, signature, at)
	if err != nil {
		return false, fmt.Errorf("complete payment intent: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payment_intents WHERE intent_id = $1)`, intentID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check payment intent: %w", err)
	}
	if !exists {
		return false, ports.ErrIntentNotFound
	}
	return false, nil
}
