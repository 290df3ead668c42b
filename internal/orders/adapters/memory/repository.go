package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

// Repository provides an in-memory store useful for local development and tests.
// It implements ports.TxOrderRepository so the ledger writes orders atomically.
type Repository struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
	// byIntent enforces one order per payment intent, like the unique index in postgres.
	byIntent map[string]string
}

// NewRepository constructs a new in-memory repository.
func NewRepository() *Repository {
	return &Repository{
		orders:   make(map[string]domain.Order),
		byIntent: make(map[string]string),
	}
}

func (r *Repository) insert(order domain.Order) error {
	if order.PaymentIntentID != "" {
		if _, taken := r.byIntent[order.PaymentIntentID]; taken {
			return ports.ErrDuplicateIntent
		}
		r.byIntent[order.PaymentIntentID] = order.ID
	}
	r.orders[order.ID] = cloneOrder(order)
	return nil
}

// Create stores the order row without line items.
func (r *Repository) Create(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order.Items = nil
	return r.insert(order)
}

// CreateWithLineItems stores the order and its items together.
func (r *Repository) CreateWithLineItems(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insert(order)
}

func (r *Repository) InsertLineItems(_ context.Context, orderID string, items []domain.LineItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderID]
	if !ok {
		return ports.ErrNotFound
	}
	order.Items = append(order.Items, items...)
	r.orders[orderID] = order
	return nil
}

func (r *Repository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok || order.IsPaid() {
		return ports.ErrNotFound
	}
	delete(r.byIntent, order.PaymentIntentID)
	delete(r.orders, id)
	return nil
}

// GetByID fetches a single order by identifier.
func (r *Repository) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	copy := cloneOrder(order)
	return &copy, nil
}

func (r *Repository) GetByPaymentIntentID(ctx context.Context, intentID string) (*domain.Order, error) {
	r.mu.RLock()
	id, ok := r.byIntent[intentID]
	r.mu.RUnlock()
	if !ok {
		return nil, ports.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// List returns orders respecting the provided filter, newest first. Pagination is 1-based.
func (r *Repository) List(_ context.Context, filter ports.ListFilter) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	filter = filter.Normalize()

	var result []domain.Order
	for _, order := range r.orders {
		if filter.CustomerID != "" && order.CustomerID != filter.CustomerID {
			continue
		}
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		result = append(result, order)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	start := filter.Offset()
	if start >= len(result) {
		return []domain.Order{}, nil
	}

	end := start + filter.PageSize
	if end > len(result) {
		end = len(result)
	}

	slice := make([]domain.Order, 0, end-start)
	for _, order := range result[start:end] {
		slice = append(slice, cloneOrder(order))
	}

	return slice, nil
}

func (r *Repository) MarkPaid(_ context.Context, id, paymentID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return false, ports.ErrNotFound
	}
	if order.PaymentStatus != domain.PaymentPending || order.Status == domain.StatusCancelled {
		return false, nil
	}

	order.PaymentStatus = domain.PaymentPaid
	order.PaymentID = paymentID
	if order.Status == domain.StatusPending {
		order.Status = domain.StatusConfirmed
	}
	order.UpdatedAt = at
	r.orders[id] = order
	return true, nil
}

// UpdateStatus sets the status and updatedAt timestamp for an order.
func (r *Repository) UpdateStatus(_ context.Context, id string, from, to domain.OrderStatus, trackingNumber *string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return ports.ErrNotFound
	}
	if order.Status != from {
		return ports.ErrStatusChanged
	}

	order.Status = to
	if trackingNumber != nil {
		order.TrackingNumber = *trackingNumber
	}
	order.UpdatedAt = at
	r.orders[id] = order
	return nil
}

func (r *Repository) FlagReconciliation(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return ports.ErrNotFound
	}
	order.ReconciliationRequired = true
	order.UpdatedAt = at
	r.orders[id] = order
	return nil
}

func cloneOrder(order domain.Order) domain.Order {
	order.Items = append([]domain.LineItem(nil), order.Items...)
	return order
}
