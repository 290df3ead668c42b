package kafka

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestInitializeMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() failed: %v", err)
	}

	if metrics.producerLatency == nil {
		t.Error("producerLatency is nil")
	}
	if metrics.published == nil {
		t.Error("published is nil")
	}
}

func TestRecordPublish(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() failed: %v", err)
	}

	ctx := context.Background()
	brokerDown := errors.New("broker unavailable")
	metrics.RecordPublish(ctx, TopicOrderCreated, 0.2, nil)
	metrics.RecordPublish(ctx, TopicOrderPaid, 0.3, brokerDown)
	metrics.RecordPublish(ctx, TopicOrderPaid, 0.1, brokerDown)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Failed to collect metrics: %v", err)
	}

	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = true
			switch data := m.Data.(type) {
			case metricdata.Histogram[float64]:
				if len(data.DataPoints) != 2 {
					t.Errorf("expected 2 latency series, got %d", len(data.DataPoints))
				}
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					topic, _ := dp.Attributes.Value(attribute.Key("topic"))
					if topic.AsString() == TopicOrderPaid && dp.Value != 2 {
						t.Errorf("expected 2 failed order.paid publishes, got %d", dp.Value)
					}
				}
			}
		}
	}

	for _, name := range []string{"kafka_producer_latency_seconds", "kafka_messages_published_total"} {
		if !found[name] {
			t.Errorf("%s metric not found", name)
		}
	}
}

func TestPublishStatus(t *testing.T) {
	tests := map[string]struct {
		err  error
		want string
	}{
		"success":  {nil, "success"},
		"timeout":  {fmt.Errorf("write: %w", context.DeadlineExceeded), "timeout"},
		"canceled": {context.Canceled, "canceled"},
		"other":    {errors.New("leader not available"), "error"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := publishStatus(tt.err); got != tt.want {
				t.Errorf("publishStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}
