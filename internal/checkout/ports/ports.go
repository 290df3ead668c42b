package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dejobratic/storefront/internal/checkout/domain"
	coupondomain "github.com/dejobratic/storefront/internal/coupons/domain"
	"github.com/dejobratic/storefront/internal/orders/app/commands"
	orderdomain "github.com/dejobratic/storefront/internal/orders/domain"
)

// OrderLedger is the part of the order ledger checkout drives.
type OrderLedger interface {
	CreatePendingOrder(ctx context.Context, cmd commands.CreatePendingOrderCommand) (*orderdomain.Order, error)
	GetOrderByPaymentIntent(ctx context.Context, intentID string) (*orderdomain.Order, error)
	MarkPaid(ctx context.Context, orderID, paymentID string) (commands.MarkPaidResult, error)
	FlagReconciliation(ctx context.Context, orderID string) error
}

// StockAdjuster takes stock for an order line at most once.
type StockAdjuster interface {
	DecrementForOrder(ctx context.Context, orderID, productID string, quantity int) error
}

// Coupons validates and redeems discount codes.
type Coupons interface {
	Validate(ctx context.Context, code string, orderValue decimal.Decimal) (coupondomain.Discount, error)
	Redeem(ctx context.Context, code, orderID string) (bool, error)
	Redeemed(ctx context.Context, code, orderID string) (bool, error)
}

// ReconciliationPublisher announces reconciliation records to other systems.
type ReconciliationPublisher interface {
	PublishReconciliationRequired(ctx context.Context, event orderdomain.ReconciliationRequired) error
}

// ReconciliationStore persists reconciliation records.
type ReconciliationStore interface {
	// Create stores r unless an unresolved record with the same intent and
	// reason exists. It reports whether r was stored.
	Create(ctx context.Context, r domain.Reconciliation) (bool, error)
	ListUnresolved(ctx context.Context, limit int) ([]domain.Reconciliation, error)
	// Resolve closes an open record. It returns domain.ErrReconciliationNotFound
	// or domain.ErrAlreadyResolved.
	Resolve(ctx context.Context, id, resolution string, at time.Time) (*domain.Reconciliation, error)
}
