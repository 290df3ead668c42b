package app

import (
	"context"
	"log/slog"

	"github.com/dejobratic/storefront/internal/orders/app/commands"
	"github.com/dejobratic/storefront/internal/orders/app/queries"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/metrics"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

// Ledger owns the order record lifecycle: creation, payment, status changes
// and the reconciliation flag.
type Ledger struct {
	create    commands.CreatePendingOrderHandler
	markPaid  *commands.MarkPaidCommandHandler
	status    *commands.UpdateStatusCommandHandler
	flag      *commands.FlagReconciliationCommandHandler
	getOrder  *queries.GetOrderQueryHandler
	listOrder *queries.ListOrdersQueryHandler
}

// NewLedger wires required dependencies.
func NewLedger(
	repo ports.OrderRepository,
	catalog ports.ProductCatalog,
	events ports.EventBus,
	logger *slog.Logger,
	metrics *metrics.Metrics,
) *Ledger {
	coreHandler := commands.NewCreatePendingOrderCommandHandler(repo, catalog, events, logger)
	observableHandler := commands.NewObservableCreatePendingOrderHandler(coreHandler, logger, metrics)

	return &Ledger{
		create:    observableHandler,
		markPaid:  commands.NewMarkPaidCommandHandler(repo, events, logger),
		status:    commands.NewUpdateStatusCommandHandler(repo, events, logger, metrics),
		flag:      commands.NewFlagReconciliationCommandHandler(repo),
		getOrder:  queries.NewGetOrderQueryHandler(repo),
		listOrder: queries.NewListOrdersQueryHandler(repo),
	}
}

// CreatePendingOrder records a pending order with snapshotted line items.
func (l *Ledger) CreatePendingOrder(ctx context.Context, cmd commands.CreatePendingOrderCommand) (*domain.Order, error) {
	return l.create.Handle(ctx, cmd)
}

// MarkPaid moves an order to paid/confirmed, idempotently per payment id.
func (l *Ledger) MarkPaid(ctx context.Context, orderID, paymentID string) (commands.MarkPaidResult, error) {
	return l.markPaid.Handle(ctx, commands.MarkPaidCommand{OrderID: orderID, PaymentID: paymentID})
}

// UpdateStatus applies an allowed status transition and/or tracking number.
func (l *Ledger) UpdateStatus(ctx context.Context, cmd commands.UpdateStatusCommand) (*domain.Order, error) {
	return l.status.Handle(ctx, cmd)
}

// CancelOrder cancels a customer's own unpaid pending order.
func (l *Ledger) CancelOrder(ctx context.Context, orderID, customerID string) (*domain.Order, error) {
	return l.status.Cancel(ctx, commands.CancelOrderCommand{OrderID: orderID, CustomerID: customerID})
}

// FlagReconciliation marks the order as needing manual follow-up.
func (l *Ledger) FlagReconciliation(ctx context.Context, orderID string) error {
	return l.flag.Handle(ctx, orderID)
}

// GetOrder retrieves an order by ID.
func (l *Ledger) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return l.getOrder.Handle(ctx, queries.GetOrderQuery{OrderID: id})
}

// GetOrderByPaymentIntent retrieves the order recorded for a provider intent.
func (l *Ledger) GetOrderByPaymentIntent(ctx context.Context, intentID string) (*domain.Order, error) {
	return l.getOrder.ByPaymentIntent(ctx, intentID)
}

// ListOrders returns one page of orders.
func (l *Ledger) ListOrders(ctx context.Context, query queries.ListOrdersQuery) (queries.OrderPage, error) {
	return l.listOrder.Handle(ctx, query)
}
