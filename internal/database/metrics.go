package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	meter         metric.Meter
	queryDuration metric.Float64Histogram
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	queryDuration, err := meter.Float64Histogram(
		"db_query_duration_seconds",
		metric.WithDescription("Database query duration by operation and outcome"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1),
	)
	if err != nil {
		return nil, fmt.Errorf("create db_query_duration histogram: %w", err)
	}

	return &Metrics{meter: meter, queryDuration: queryDuration}, nil
}

// RecordQuery records how long an operation took and how it ended.
func (m *Metrics) RecordQuery(ctx context.Context, operation string, durationSeconds float64, err error) {
	m.queryDuration.Record(ctx, durationSeconds, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", queryStatus(err)),
	))
}

// ObservePool reports the pool's connection counts on every collection.
func (m *Metrics) ObservePool(pool *pgxpool.Pool) error {
	conns, err := m.meter.Int64ObservableGauge(
		"db_pool_connections",
		metric.WithDescription("Pool connections by state"),
	)
	if err != nil {
		return fmt.Errorf("create db_pool_connections gauge: %w", err)
	}

	_, err = m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stat := pool.Stat()
		o.ObserveInt64(conns, int64(stat.AcquiredConns()), metric.WithAttributes(attribute.String("state", "acquired")))
		o.ObserveInt64(conns, int64(stat.IdleConns()), metric.WithAttributes(attribute.String("state", "idle")))
		return nil
	}, conns)
	if err != nil {
		return fmt.Errorf("register pool callback: %w", err)
	}
	return nil
}

// queryStatus keeps expected misses apart from real failures.
func queryStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, pgx.ErrNoRows):
		return "not_found"
	case IsUniqueViolation(err, ""):
		return "conflict"
	default:
		return "error"
	}
}
