package queries

import (
	"context"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

// ListOrdersQuery lists one customer's orders, or every order when
// CustomerID is empty.
type ListOrdersQuery struct {
	CustomerID string
	Status     *domain.OrderStatus
	Page       int
	PageSize   int
}

// OrderPage is one page of results plus the effective paging values.
type OrderPage struct {
	Orders   []domain.Order `json:"orders"`
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
}

type ListOrdersQueryHandler struct {
	repo ports.OrderRepository
}

func NewListOrdersQueryHandler(repo ports.OrderRepository) *ListOrdersQueryHandler {
	return &ListOrdersQueryHandler{repo: repo}
}

func (h *ListOrdersQueryHandler) Handle(ctx context.Context, query ListOrdersQuery) (OrderPage, error) {
	filter := ports.ListFilter{
		CustomerID: query.CustomerID,
		Status:     query.Status,
		Page:       query.Page,
		PageSize:   query.PageSize,
	}.Normalize()

	orders, err := h.repo.List(ctx, filter)
	if err != nil {
		return OrderPage{}, err
	}
	if orders == nil {
		orders = []domain.Order{}
	}

	return OrderPage{Orders: orders, Page: filter.Page, PageSize: filter.PageSize}, nil
}
