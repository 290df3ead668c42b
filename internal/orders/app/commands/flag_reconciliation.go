package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dejobratic/storefront/internal/orders/ports"
)

type FlagReconciliationCommandHandler struct {
	repo ports.OrderRepository
}

func NewFlagReconciliationCommandHandler(repo ports.OrderRepository) *FlagReconciliationCommandHandler {
	return &FlagReconciliationCommandHandler{repo: repo}
}

// Handle marks the order as needing manual follow-up. The flag is sticky;
// resolving it is an operator action on the reconciliation record.
func (h *FlagReconciliationCommandHandler) Handle(ctx context.Context, orderID string) error {
	if err := h.repo.FlagReconciliation(ctx, orderID, time.Now().UTC()); err != nil {
		return fmt.Errorf("flag order for reconciliation: %w", err)
	}
	return nil
}
