package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dejobratic/storefront/internal/apperr"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/metrics"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

// UpdateStatusCommand changes fulfilment status and/or the tracking number.
// An empty Status leaves the status as is.
type UpdateStatusCommand struct {
	OrderID        string
	Status         domain.OrderStatus
	TrackingNumber *string
}

type UpdateStatusCommandHandler struct {
	repo    ports.OrderRepository
	events  ports.EventBus
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewUpdateStatusCommandHandler(repo ports.OrderRepository, events ports.EventBus, logger *slog.Logger, metrics *metrics.Metrics) *UpdateStatusCommandHandler {
	return &UpdateStatusCommandHandler{repo: repo, events: events, logger: logger, metrics: metrics}
}

func (h *UpdateStatusCommandHandler) Handle(ctx context.Context, cmd UpdateStatusCommand) (*domain.Order, error) {
	if strings.TrimSpace(cmd.OrderID) == "" {
		return nil, apperr.Validation("invalid status update", apperr.FieldViolation{Field: "orderId", Rule: "required"})
	}

	order, err := h.repo.GetByID(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}

	target := cmd.Status
	if target == "" {
		target = order.Status
	}
	if target == order.Status && cmd.TrackingNumber == nil {
		return order, nil
	}
	if target != order.Status && !domain.CanTransition(order.Status, target) {
		return nil, fmt.Errorf("%s -> %s: %w", order.Status, target, domain.ErrInvalidTransition)
	}

	return h.apply(ctx, order, target, cmd.TrackingNumber)
}

func (h *UpdateStatusCommandHandler) apply(ctx context.Context, order *domain.Order, target domain.OrderStatus, tracking *string) (*domain.Order, error) {
	now := time.Now().UTC()
	if err := h.repo.UpdateStatus(ctx, order.ID, order.Status, target, tracking, now); err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	previous := order.Status
	order.Status = target
	if tracking != nil {
		order.TrackingNumber = *tracking
	}
	order.UpdatedAt = now

	if previous != target {
		h.metrics.RecordStatusTransition(ctx, string(previous), string(target))
		event := domain.StatusChanged{
			OrderID:        order.ID,
			From:           previous,
			To:             target,
			TrackingNumber: order.TrackingNumber,
			OccurredAt:     now,
		}
		if err := h.events.PublishOrderStatusChanged(ctx, event); err != nil {
			h.logger.WarnContext(ctx, "status changed but failed to publish event",
				"order_id", order.ID,
				"error", err,
			)
		}
	}

	return order, nil
}

type CancelOrderCommand struct {
	OrderID    string
	CustomerID string
}

var ErrNotCancellable = apperr.New(apperr.KindConflict, "only unpaid pending orders can be cancelled")

// Cancel lets a customer withdraw their own order before it is paid. Orders
// owned by someone else are reported as not found.
func (h *UpdateStatusCommandHandler) Cancel(ctx context.Context, cmd CancelOrderCommand) (*domain.Order, error) {
	order, err := h.repo.GetByID(ctx, cmd.OrderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID == "" || order.CustomerID != cmd.CustomerID {
		return nil, ports.ErrNotFound
	}
	if order.Status != domain.StatusPending || order.IsPaid() {
		return nil, ErrNotCancellable
	}

	return h.apply(ctx, order, domain.StatusCancelled, nil)
}
