package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dejobratic/storefront/internal/idempotency"
)

// Store keeps responses in idempotency_keys. Rows with status_code 0 are
// reservations; they lapse after idempotency.ReservationTTL while completed
// rows lapse after the store TTL.
type Store struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

func NewStore(pool *pgxpool.Pool, ttl time.Duration) *Store {
	return &Store{pool: pool, ttl: ttl}
}

func (s *Store) Get(ctx context.Context, key string) (*idempotency.StoredResponse, error) {
	query := `
		SELECT status_code, body, resource_id
		FROM idempotency_keys
		WHERE key = $1
		  AND CASE WHEN status_code = 0
		      THEN created_at > now() - make_interval(secs => $3::bigint)
		      ELSE $2::bigint <= 0 OR created_at > now() - make_interval(secs => $2::bigint)
		  END
	`

	var resp idempotency.StoredResponse
	err := s.pool.QueryRow(ctx, query, key, s.ttlSeconds(), leaseSeconds()).Scan(
		&resp.StatusCode,
		&resp.Body,
		&resp.ResourceID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select idempotency key: %w", err)
	}

	return &resp, nil
}

// Reserve inserts a pending row, taking over an existing row only once it
// has lapsed.
func (s *Store) Reserve(ctx context.Context, key string) (bool, error) {
	query := `
		INSERT INTO idempotency_keys AS k (key, status_code, body)
		VALUES ($1, 0, ''::bytea)
		ON CONFLICT (key) DO UPDATE
		SET status_code = 0, body = ''::bytea, resource_id = '', created_at = now()
		WHERE CASE WHEN k.status_code = 0
		      THEN k.created_at <= now() - make_interval(secs => $3::bigint)
		      ELSE $2::bigint > 0 AND k.created_at <= now() - make_interval(secs => $2::bigint)
		  END
	`

	tag, err := s.pool.Exec(ctx, query, key, s.ttlSeconds(), leaseSeconds())
	if err != nil {
		return false, fmt.Errorf("reserve idempotency key: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Save replaces a reservation or a lapsed row; a live completed response is
// kept.
func (s *Store) Save(ctx context.Context, key string, response idempotency.StoredResponse) error {
	query := `
		INSERT INTO idempotency_keys AS k (key, status_code, body, resource_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE
		SET status_code = EXCLUDED.status_code,
		    body = EXCLUDED.body,
		    resource_id = EXCLUDED.resource_id,
		    created_at = now()
		WHERE k.status_code = 0
		   OR ($5::bigint > 0 AND k.created_at <= now() - make_interval(secs => $5::bigint))
	`

	_, err := s.pool.Exec(ctx, query, key, response.StatusCode, response.Body, response.ResourceID, s.ttlSeconds())
	if err != nil {
		return fmt.Errorf("insert idempotency key: %w", err)
	}

	return nil
}

func (s *Store) Release(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE key = $1 AND status_code = 0`, key)
	if err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// Purge deletes lapsed keys and reports how many went.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM idempotency_keys
		WHERE CASE WHEN status_code = 0
		      THEN created_at <= now() - make_interval(secs => $2::bigint)
		      ELSE $1::bigint > 0 AND created_at <= now() - make_interval(secs => $1::bigint)
		  END
	`
	tag, err := s.pool.Exec(ctx, query, s.ttlSeconds(), leaseSeconds())
	if err != nil {
		return 0, fmt.Errorf("purge idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) ttlSeconds() int64 {
	return int64(s.ttl.Seconds())
}

func leaseSeconds() int64 {
	return int64(idempotency.ReservationTTL.Seconds())
}
