package adapters

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dejobratic/storefront/internal/kafka"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/dejobratic/storefront/internal/telemetry"
)

type ObservableEventBus struct {
	bus     ports.EventBus
	metrics *kafka.Metrics
}

func NewObservableEventBus(bus ports.EventBus, metrics *kafka.Metrics) *ObservableEventBus {
	return &ObservableEventBus{
		bus:     bus,
		metrics: metrics,
	}
}

func (e *ObservableEventBus) publish(ctx context.Context, topic string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := telemetry.StartSpan(ctx, "EventBus.Publish")
	defer span.End()

	telemetry.AddSpanAttributes(span, append(attrs,
		attribute.String("event.type", topic),
		attribute.String("topic", topic),
	)...)

	start := time.Now()
	err := fn(ctx)
	e.metrics.RecordPublish(ctx, topic, time.Since(start).Seconds(), err)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}

func (e *ObservableEventBus) PublishOrderCreated(ctx context.Context, event domain.OrderEvent) error {
	return e.publish(ctx, kafka.TopicOrderCreated, func(ctx context.Context) error {
		return e.bus.PublishOrderCreated(ctx, event)
	}, attribute.String("order.id", event.OrderID))
}

func (e *ObservableEventBus) PublishOrderPaid(ctx context.Context, event domain.OrderEvent) error {
	return e.publish(ctx, kafka.TopicOrderPaid, func(ctx context.Context) error {
		return e.bus.PublishOrderPaid(ctx, event)
	}, attribute.String("order.id", event.OrderID), attribute.String("payment.id", event.PaymentID))
}

func (e *ObservableEventBus) PublishOrderStatusChanged(ctx context.Context, event domain.StatusChanged) error {
	return e.publish(ctx, kafka.TopicOrderStatusChanged, func(ctx context.Context) error {
		return e.bus.PublishOrderStatusChanged(ctx, event)
	},
		attribute.String("order.id", event.OrderID),
		attribute.String("order.from_status", string(event.From)),
		attribute.String("order.new_status", string(event.To)),
	)
}

func (e *ObservableEventBus) PublishReconciliationRequired(ctx context.Context, event domain.ReconciliationRequired) error {
	return e.publish(ctx, kafka.TopicReconciliationRequired, func(ctx context.Context) error {
		return e.bus.PublishReconciliationRequired(ctx, event)
	},
		attribute.String("payment.intent_id", event.IntentID),
		attribute.String("reconciliation.reason", event.Reason),
	)
}
