package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dejobratic/storefront/internal/apperr"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

type MarkPaidCommand struct {
	OrderID   string
	PaymentID string
}

func (c MarkPaidCommand) Validate() error {
	var fields []apperr.FieldViolation
	if strings.TrimSpace(c.OrderID) == "" {
		fields = append(fields, apperr.FieldViolation{Field: "orderId", Rule: "required"})
	}
	if strings.TrimSpace(c.PaymentID) == "" {
		fields = append(fields, apperr.FieldViolation{Field: "paymentId", Rule: "required"})
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid mark paid request", fields...)
	}
	return nil
}

// MarkPaidResult tells the caller whether this call performed the transition
// or found it already done with the same payment id.
type MarkPaidResult struct {
	Order       *domain.Order
	AlreadyPaid bool
}

type MarkPaidCommandHandler struct {
	repo   ports.OrderRepository
	events ports.EventBus
	logger *slog.Logger
}

func NewMarkPaidCommandHandler(repo ports.OrderRepository, events ports.EventBus, logger *slog.Logger) *MarkPaidCommandHandler {
	return &MarkPaidCommandHandler{repo: repo, events: events, logger: logger}
}

// Handle is idempotent per payment id: a repeat with the same id succeeds
// without side effects and a different id is ErrAlreadyPaid.
func (h *MarkPaidCommandHandler) Handle(ctx context.Context, cmd MarkPaidCommand) (MarkPaidResult, error) {
	if err := cmd.Validate(); err != nil {
		return MarkPaidResult{}, err
	}

	now := time.Now().UTC()
	updated, err := h.repo.MarkPaid(ctx, cmd.OrderID, cmd.PaymentID, now)
	if err != nil && !errors.Is(err, ports.ErrNotFound) {
		return MarkPaidResult{}, fmt.Errorf("mark order paid: %w", err)
	}

	order, getErr := h.repo.GetByID(ctx, cmd.OrderID)
	if getErr != nil {
		return MarkPaidResult{}, getErr
	}

	if !updated {
		if order.IsPaid() && order.PaymentID == cmd.PaymentID {
			return MarkPaidResult{Order: order, AlreadyPaid: true}, nil
		}
		if order.IsPaid() {
			return MarkPaidResult{}, ports.ErrAlreadyPaid
		}
		return MarkPaidResult{}, fmt.Errorf("mark order paid: %w", ports.ErrStatusChanged)
	}

	if err := h.events.PublishOrderPaid(ctx, domain.NewOrderEvent(*order, now)); err != nil {
		h.logger.WarnContext(ctx, "order paid but failed to publish event",
			"order_id", order.ID,
			"error", err,
		)
	}

	return MarkPaidResult{Order: order}, nil
}
