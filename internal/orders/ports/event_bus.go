package ports

import (
	"context"

	"github.com/dejobratic/storefront/internal/orders/domain"
)

// EventBus defines the contract for publishing order lifecycle events.
type EventBus interface {
	PublishOrderCreated(ctx context.Context, event domain.OrderEvent) error
	PublishOrderPaid(ctx context.Context, event domain.OrderEvent) error
	PublishOrderStatusChanged(ctx context.Context, event domain.StatusChanged) error
	PublishReconciliationRequired(ctx context.Context, event domain.ReconciliationRequired) error
}
