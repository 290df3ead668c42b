package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dejobratic/storefront/internal/checkout/domain"
)

const reconciliationColumns = `
	id, COALESCE(order_id, ''), intent_id, payment_id, reason, details, created_at, resolved_at, resolution
`

// Store keeps reconciliation records in the reconciliation_flags table. The
// partial unique index on (intent_id, reason) keeps one open record per cause.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Create(ctx context.Context, r domain.Reconciliation) (bool, error) {
	details := r.Details
	if details == nil {
		details = map[string]any{}
	}

	var orderID *string
	if r.OrderID != "" {
		orderID = &r.OrderID
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO reconciliation_flags (id, order_id, intent_id, payment_id, reason, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (intent_id, reason) WHERE resolved_at IS NULL DO NOTHING
	`, r.ID, orderID, r.IntentID, r.PaymentID, r.Reason, details, r.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert reconciliation flag: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ListUnresolved(ctx context.Context, limit int) ([]domain.Reconciliation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+reconciliationColumns+`
		FROM reconciliation_flags
		WHERE resolved_at IS NULL
		ORDER BY created_at, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query reconciliation flags: %w", err)
	}
	defer rows.Close()

	var out []domain.Reconciliation
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reconciliation flag: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reconciliation flags: %w", err)
	}
	return out, nil
}

func (s *Store) Resolve(ctx context.Context, id, resolution string, at time.Time) (*domain.Reconciliation, error) {
	r, err := scan(s.pool.QueryRow(ctx, `
		UPDATE reconciliation_flags
		SET resolved_at = $2, resolution = $3
		WHERE id = $1 AND resolved_at IS NULL
		RETURNING `+reconciliationColumns, id, at, resolution))
	if err == nil {
		return &r, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("resolve reconciliation flag: %w", err)
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM reconciliation_flags WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check reconciliation flag: %w", err)
	}
	if exists {
		return nil, domain.ErrAlreadyResolved
	}
	return nil, domain.ErrReconciliationNotFound
}

func scan(row pgx.Row) (domain.Reconciliation, error) {
	var r domain.Reconciliation
	err := row.Scan(
		&r.ID,
		&r.OrderID,
		&r.IntentID,
		&r.PaymentID,
		&r.Reason,
		&r.Details,
		&r.CreatedAt,
		&r.ResolvedAt,
		&r.Resolution,
	)
	return r, err
}
