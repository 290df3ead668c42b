package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dejobratic/storefront/internal/database"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

const paymentIntentConstraint = "orders_payment_intent_id_key"

const orderColumns = `
	id, customer_id, shipping_address_id, subtotal, shipping_cost, discount, total,
	coupon_code, status, payment_status, payment_intent_id, payment_id, tracking_number,
	notes, reconciliation_required, created_at, updated_at
`

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, order domain.Order) error {
	return insertOrder(ctx, r.pool, order)
}

func (r *Repository) InsertLineItems(ctx context.Context, orderID string, items []domain.LineItem) error {
	return insertLineItems(ctx, r.pool, orderID, items)
}

// CreateWithLineItems writes the order row and every line item in one transaction.
func (r *Repository) CreateWithLineItems(ctx context.Context, order domain.Order) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := insertOrder(ctx, tx, order); err != nil {
			return err
		}
		return insertLineItems(ctx, tx, order.ID, order.Items)
	})
}

func insertOrder(ctx context.Context, q querier, order domain.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := q.Exec(ctx, query,
		order.ID,
		nullable(order.CustomerID),
		order.ShippingAddressID,
		order.Subtotal,
		order.ShippingCost,
		order.Discount,
		order.Total,
		nullable(order.CouponCode),
		order.Status,
		order.PaymentStatus,
		nullable(order.PaymentIntentID),
		nullable(order.PaymentID),
		nullable(order.TrackingNumber),
		order.Notes,
		order.ReconciliationRequired,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err, paymentIntentConstraint) {
			return ports.ErrDuplicateIntent
		}
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

func insertLineItems(ctx context.Context, q querier, orderID string, items []domain.LineItem) error {
	query := `
		INSERT INTO order_line_items (
			order_id, position, product_id, product_name, product_sku, product_price,
			product_image, quantity, color, size
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	batch := &pgx.Batch{}
	for i, item := range items {
		batch.Queue(query,
			orderID,
			i,
			item.ProductID,
			item.ProductName,
			item.ProductSKU,
			item.ProductPrice,
			item.ProductImage,
			item.Quantity,
			nullable(item.Color),
			nullable(item.Size),
		)
	}

	if err := q.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert line items: %w", err)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	query := `
		DELETE FROM orders
		WHERE id = $1 AND payment_status <> 'paid'
	`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *Repository) GetByPaymentIntentID(ctx context.Context, intentID string) (*domain.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_intent_id = $1`, intentID)
}

func (r *Repository) getOne(ctx context.Context, query string, arg string) (*domain.Order, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, fmt.Errorf("select order: %w", err)
	}

	items, err := r.lineItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return &order, nil
}

func (r *Repository) lineItems(ctx context.Context, orderID string) ([]domain.LineItem, error) {
	query := `
		SELECT product_id, product_name, product_sku, product_price, product_image,
			quantity, COALESCE(color, ''), COALESCE(size, '')
		FROM order_line_items
		WHERE order_id = $1
		ORDER BY position
	`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query line items: %w", err)
	}
	defer rows.Close()

	var items []domain.LineItem
	for rows.Next() {
		var item domain.LineItem
		if err := rows.Scan(
			&item.ProductID,
			&item.ProductName,
			&item.ProductSKU,
			&item.ProductPrice,
			&item.ProductImage,
			&item.Quantity,
			&item.Color,
			&item.Size,
		); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate line items: %w", err)
	}

	return items, nil
}

// List returns order headers without line items, newest first.
func (r *Repository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	filter = filter.Normalize()

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE ($1::text IS NULL OR customer_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`

	var statusFilter *string
	if filter.Status != nil {
		s := string(*filter.Status)
		statusFilter = &s
	}

	rows, err := r.pool.Query(ctx, query, nullable(filter.CustomerID), statusFilter, filter.PageSize, filter.Offset())
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	return orders, nil
}

// MarkPaid only touches payment-pending rows that were not cancelled, so
// concurrent confirmations race on the row lock and exactly one of them
// observes RowsAffected() == 1.
func (r *Repository) MarkPaid(ctx context.Context, id, paymentID string, at time.Time) (bool, error) {
	query := `
		UPDATE orders
		SET payment_status = 'paid',
		    payment_id = $2,
		    status = CASE WHEN status = 'pending' THEN 'confirmed' ELSE status END,
		    updated_at = $3
		WHERE id = $1 AND payment_status = 'pending' AND status <> 'cancelled'
	`

	result, err := r.pool.Exec(ctx, query, id, paymentID, at)
	if err != nil {
		return false, fmt.Errorf("mark order paid: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// UpdateStatus sets the status, and the tracking number when given, while
// the order is still in from.
func (r *Repository) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, trackingNumber *string, at time.Time) error {
	query := `
		UPDATE orders
		SET status = $3,
		    tracking_number = COALESCE($4, tracking_number),
		    updated_at = $5
		WHERE id = $1 AND status = $2
	`

	result, err := r.pool.Exec(ctx, query, id, from, to, trackingNumber, at)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	if result.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ports.ErrStatusChanged
	}

	return nil
}

func (r *Repository) FlagReconciliation(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE orders
		SET reconciliation_required = TRUE, updated_at = $2
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("flag order: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var order domain.Order
	var customerID, couponCode, intentID, paymentID, trackingNo *string
	err := row.Scan(
		&order.ID,
		&customerID,
		&order.ShippingAddressID,
		&order.Subtotal,
		&order.ShippingCost,
		&order.Discount,
		&order.Total,
		&couponCode,
		&order.Status,
		&order.PaymentStatus,
		&intentID,
		&paymentID,
		&trackingNo,
		&order.Notes,
		&order.ReconciliationRequired,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}

	order.CustomerID = deref(customerID)
	order.CouponCode = deref(couponCode)
	order.PaymentIntentID = deref(intentID)
	order.PaymentID = deref(paymentID)
	order.TrackingNumber = deref(trackingNo)
	return order, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
