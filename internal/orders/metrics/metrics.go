package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dejobratic/storefront/internal/apperr"
)

// Order origins.
const (
	OriginCheckout = "checkout"
	OriginDirect   = "direct"
)

type Metrics struct {
	ordersCreated     metric.Int64Counter
	creationDuration  metric.Float64Histogram
	statusTransitions metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	ordersCreated, err := meter.Int64Counter(
		"orders_created_total",
		metric.WithDescription("Order creation attempts by origin and outcome"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create orders_created_total counter: %w", err)
	}

	creationDuration, err := meter.Float64Histogram(
		"order_creation_duration_seconds",
		metric.WithDescription("Duration of order creation by origin"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create order_creation_duration histogram: %w", err)
	}

	statusTransitions, err := meter.Int64Counter(
		"order_status_transitions_total",
		metric.WithDescription("Order status changes by source and target status"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create order_status_transitions_total counter: %w", err)
	}

	return &Metrics{
		ordersCreated:     ordersCreated,
		creationDuration:  creationDuration,
		statusTransitions: statusTransitions,
	}, nil
}

// RecordOrderCreated counts one creation attempt. Failures are labelled with
// their error kind so rejected drafts stay apart from storage faults.
func (m *Metrics) RecordOrderCreated(ctx context.Context, origin string, durationSeconds float64, err error) {
	outcome := "success"
	if err != nil {
		outcome = string(apperr.KindOf(err))
	}
	m.ordersCreated.Add(ctx, 1, metric.WithAttributes(
		attribute.String("origin", origin),
		attribute.String("outcome", outcome),
	))
	m.creationDuration.Record(ctx, durationSeconds, metric.WithAttributes(
		attribute.String("origin", origin),
	))
}

// RecordStatusTransition is a no-op on a nil receiver so handlers can run without metrics.
func (m *Metrics) RecordStatusTransition(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	m.statusTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}
