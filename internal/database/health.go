package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// probeTimeout bounds each readiness probe.
const probeTimeout = 2 * time.Second

// ErrDirtySchema means a migration failed part way and needs manual repair.
var ErrDirtySchema = errors.New("database schema is dirty after a failed migration")

// CheckHealth pings the pool.
func CheckHealth(ctx context.Context, pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	return pool.Ping(ctx)
}

// CheckSchema fails while golang-migrate reports the schema as dirty. A
// database that has not been migrated yet has no version row and passes.
func CheckSchema(ctx context.Context, pool *pgxpool.Pool) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var dirty bool
	err := pool.QueryRow(ctx, `SELECT dirty FROM schema_migrations LIMIT 1`).Scan(&dirty)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case dirty:
		return ErrDirtySchema
	}
	return nil
}
