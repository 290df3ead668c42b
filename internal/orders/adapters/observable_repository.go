package adapters

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dejobratic/storefront/internal/database"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/dejobratic/storefront/internal/telemetry"
)

// ObservableRepository adds a span and a query duration sample to every
// repository call.
type ObservableRepository struct {
	repo    ports.OrderRepository
	metrics *database.Metrics
}

// ObservableTxRepository is returned for stores that support transactional
// creation so the ledger keeps using the single-transaction path.
type ObservableTxRepository struct {
	*ObservableRepository
	tx ports.TxOrderRepository
}

// NewObservableRepository wraps repo. The result implements
// ports.TxOrderRepository whenever repo does.
func NewObservableRepository(repo ports.OrderRepository, metrics *database.Metrics) ports.OrderRepository {
	base := &ObservableRepository{repo: repo, metrics: metrics}
	if tx, ok := repo.(ports.TxOrderRepository); ok {
		return &ObservableTxRepository{ObservableRepository: base, tx: tx}
	}
	return base
}

func (r *ObservableRepository) observe(ctx context.Context, operation string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := telemetry.StartSpan(ctx, "OrderRepository."+operation)
	defer span.End()

	telemetry.AddSpanAttributes(span, append(attrs, attribute.String("operation", operation))...)

	start := time.Now()
	err := fn(ctx)
	r.metrics.RecordQuery(ctx, operation, time.Since(start).Seconds(), err)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		return err
	}

	telemetry.SetSpanSuccess(span)
	return nil
}

func (r *ObservableTxRepository) CreateWithLineItems(ctx context.Context, order domain.Order) error {
	return r.observe(ctx, "create_order_with_items", func(ctx context.Context) error {
		return r.tx.CreateWithLineItems(ctx, order)
	}, attribute.String("order.id", order.ID), attribute.Int("order.items", len(order.Items)))
}

func (r *ObservableRepository) Create(ctx context.Context, order domain.Order) error {
	return r.observe(ctx, "create_order", func(ctx context.Context) error {
		return r.repo.Create(ctx, order)
	}, attribute.String("order.id", order.ID))
}

func (r *ObservableRepository) InsertLineItems(ctx context.Context, orderID string, items []domain.LineItem) error {
	return r.observe(ctx, "insert_line_items", func(ctx context.Context) error {
		return r.repo.InsertLineItems(ctx, orderID, items)
	}, attribute.String("order.id", orderID), attribute.Int("order.items", len(items)))
}

func (r *ObservableRepository) Delete(ctx context.Context, id string) error {
	return r.observe(ctx, "delete_order", func(ctx context.Context) error {
		return r.repo.Delete(ctx, id)
	}, attribute.String("order.id", id))
}

func (r *ObservableRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var order *domain.Order
	err := r.observe(ctx, "get_order_by_id", func(ctx context.Context) error {
		var err error
		order, err = r.repo.GetByID(ctx, id)
		return err
	}, attribute.String("order.id", id))
	return order, err
}

func (r *ObservableRepository) GetByPaymentIntentID(ctx context.Context, intentID string) (*domain.Order, error) {
	var order *domain.Order
	err := r.observe(ctx, "get_order_by_intent", func(ctx context.Context) error {
		var err error
		order, err = r.repo.GetByPaymentIntentID(ctx, intentID)
		return err
	}, attribute.String("payment.intent_id", intentID))
	return order, err
}

func (r *ObservableRepository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	attrs := []attribute.KeyValue{
		attribute.Int("page", filter.Page),
		attribute.Int("page_size", filter.PageSize),
	}
	if filter.Status != nil {
		attrs = append(attrs, attribute.String("filter.status", string(*filter.Status)))
	}

	var orders []domain.Order
	err := r.observe(ctx, "list_orders", func(ctx context.Context) error {
		var err error
		orders, err = r.repo.List(ctx, filter)
		return err
	}, attrs...)
	return orders, err
}

func (r *ObservableRepository) MarkPaid(ctx context.Context, id, paymentID string, at time.Time) (bool, error) {
	var updated bool
	err := r.observe(ctx, "mark_order_paid", func(ctx context.Context) error {
		var err error
		updated, err = r.repo.MarkPaid(ctx, id, paymentID, at)
		return err
	}, attribute.String("order.id", id), attribute.String("payment.id", paymentID))
	return updated, err
}

func (r *ObservableRepository) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, trackingNumber *string, at time.Time) error {
	return r.observe(ctx, "update_order_status", func(ctx context.Context) error {
		return r.repo.UpdateStatus(ctx, id, from, to, trackingNumber, at)
	},
		attribute.String("order.id", id),
		attribute.String("order.from_status", string(from)),
		attribute.String("order.new_status", string(to)),
	)
}

func (r *ObservableRepository) FlagReconciliation(ctx context.Context, id string, at time.Time) error {
	return r.observe(ctx, "flag_order_reconciliation", func(ctx context.Context) error {
		return r.repo.FlagReconciliation(ctx, id, at)
	}, attribute.String("order.id", id))
}
