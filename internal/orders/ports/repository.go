package ports

import (
	"context"
	"time"

	"github.com/dejobratic/storefront/internal/apperr"
	"github.com/dejobratic/storefront/internal/orders/domain"
)

// OrderRepository exposes persistence operations required by the application layer.
type OrderRepository interface {
	// Create inserts the order row only; line items are written separately.
	Create(ctx context.Context, order domain.Order) error
	InsertLineItems(ctx context.Context, orderID string, items []domain.LineItem) error
	// Delete removes an order that never reached paid.
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByPaymentIntentID(ctx context.Context, intentID string) (*domain.Order, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Order, error)
	// MarkPaid moves a payment-pending order to paid/confirmed. It reports
	// false when the order exists but was not payment-pending.
	MarkPaid(ctx context.Context, id, paymentID string, at time.Time) (bool, error)
	// UpdateStatus applies the change only while the order is still in from.
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, trackingNumber *string, at time.Time) error
	FlagReconciliation(ctx context.Context, id string, at time.Time) error
}

// TxOrderRepository is implemented by stores that can write an order and its
// line items in one transaction.
type TxOrderRepository interface {
	OrderRepository
	CreateWithLineItems(ctx context.Context, order domain.Order) error
}

// ListFilter narrows list queries by owner, status and pagination.
type ListFilter struct {
	CustomerID string
	Status     *domain.OrderStatus
	Page       int
	PageSize   int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize applies 1-based paging defaults and caps the page size.
func (f ListFilter) Normalize() ListFilter {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	return f
}

// Offset is the number of rows skipped for the current page.
func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

var (
	// ErrNotFound is returned when the requested order does not exist.
	ErrNotFound = apperr.New(apperr.KindNotFound, "order not found")
	// ErrAlreadyPaid is returned when an order was paid with a different payment id.
	ErrAlreadyPaid = apperr.New(apperr.KindConflict, "order already paid")
	// ErrDuplicateIntent is returned when an order already references the payment intent.
	ErrDuplicateIntent = apperr.New(apperr.KindConflict, "order already exists for payment intent")
	// ErrStatusChanged is returned when the order moved on before a conditional update landed.
	ErrStatusChanged = apperr.New(apperr.KindConflict, "order status changed concurrently")
)
