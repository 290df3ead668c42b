package kafka

import (
	"context"
	"log/slog"

	"github.com/dejobratic/storefront/internal/orders/domain"
)

// NoopEventBus logs events without sending them to Kafka. Used when no brokers are configured.
type NoopEventBus struct {
	logger *slog.Logger
}

// NewNoopEventBus returns a new no-op event publisher.
func NewNoopEventBus(logger *slog.Logger) *NoopEventBus {
	return &NoopEventBus{logger: logger}
}

func (n *NoopEventBus) PublishOrderCreated(ctx context.Context, event domain.OrderEvent) error {
	n.logger.DebugContext(ctx, "event::order_created", "order_id", event.OrderID)
	return nil
}

func (n *NoopEventBus) PublishOrderPaid(ctx context.Context, event domain.OrderEvent) error {
	n.logger.DebugContext(ctx, "event::order_paid", "order_id", event.OrderID, "payment_id", event.PaymentID)
	return nil
}

func (n *NoopEventBus) PublishOrderStatusChanged(ctx context.Context, event domain.StatusChanged) error {
	n.logger.DebugContext(ctx, "event::order_status_changed",
		"order_id", event.OrderID,
		"from", event.From,
		"to", event.To,
	)
	return nil
}

func (n *NoopEventBus) PublishReconciliationRequired(ctx context.Context, event domain.ReconciliationRequired) error {
	n.logger.DebugContext(ctx, "event::reconciliation_required",
		"intent_id", event.IntentID,
		"reason", event.Reason,
	)
	return nil
}

func (n *NoopEventBus) Close() error { return nil }
