package kafka

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics tracks producer latency and outcome per topic.
type Metrics struct {
	producerLatency metric.Float64Histogram
	published       metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	latency, err := meter.Float64Histogram(
		"kafka_producer_latency_seconds",
		metric.WithDescription("Time to hand an event to the broker"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka_producer_latency histogram: %w", err)
	}

	published, err := meter.Int64Counter(
		"kafka_messages_published_total",
		metric.WithDescription("Events handed to the producer, by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka_messages_published counter: %w", err)
	}

	return &Metrics{producerLatency: latency, published: published}, nil
}

// RecordPublish records one publish attempt. A nil err counts as success.
func (m *Metrics) RecordPublish(ctx context.Context, topic string, durationSeconds float64, err error) {
	attrs := metric.WithAttributes(
		attribute.String("topic", topic),
		attribute.String("status", publishStatus(err)),
	)
	m.producerLatency.Record(ctx, durationSeconds, attrs)
	m.published.Add(ctx, 1, attrs)
}

func publishStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
