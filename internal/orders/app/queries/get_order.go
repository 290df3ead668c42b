package queries

import (
	"context"
	"strings"

	"github.com/dejobratic/storefront/internal/apperr"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

// GetOrderQuery represents a request to retrieve an order by its ID.
type GetOrderQuery struct {
	OrderID string
}

// Validate ensures the query has valid parameters.
func (q GetOrderQuery) Validate() error {
	if strings.TrimSpace(q.OrderID) == "" {
		return apperr.Validation("invalid order query", apperr.FieldViolation{Field: "orderId", Rule: "required"})
	}
	return nil
}

// GetOrderQueryHandler executes GetOrderQuery and returns the order if found.
type GetOrderQueryHandler struct {
	repo ports.OrderRepository
}

// NewGetOrderQueryHandler constructs a GetOrderQueryHandler.
func NewGetOrderQueryHandler(repo ports.OrderRepository) *GetOrderQueryHandler {
	return &GetOrderQueryHandler{repo: repo}
}

// Handle executes the query and retrieves the order.
func (h *GetOrderQueryHandler) Handle(ctx context.Context, query GetOrderQuery) (*domain.Order, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	return h.repo.GetByID(ctx, query.OrderID)
}

// ByPaymentIntent finds the order recorded for a provider intent id.
func (h *GetOrderQueryHandler) ByPaymentIntent(ctx context.Context, intentID string) (*domain.Order, error) {
	if strings.TrimSpace(intentID) == "" {
		return nil, ports.ErrNotFound
	}
	return h.repo.GetByPaymentIntentID(ctx, intentID)
}
