package commands_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/metrics"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMetrics(t *testing.T) *metrics.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))
	m, err := metrics.NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() failed: %v", err)
	}
	return m
}

type stubCatalog map[string]ports.ProductSnapshot

func (c stubCatalog) Snapshot(_ context.Context, ids []string) (map[string]ports.ProductSnapshot, error) {
	out := map[string]ports.ProductSnapshot{}
	for _, id := range ids {
		if p, ok := c[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func testCatalog() stubCatalog {
	return stubCatalog{
		"p-1": {ID: "p-1", Name: "Mug", SKU: "MUG-1", Price: decimal.NewFromInt(250), ImageURL: "mug.png"},
		"p-2": {ID: "p-2", Name: "Tee", SKU: "TEE-1", Price: decimal.NewFromInt(500)},
	}
}

type mockEventBus struct {
	mu            sync.Mutex
	created       []domain.OrderEvent
	paid          []domain.OrderEvent
	statusChanged []domain.StatusChanged
	err           error
}

func (m *mockEventBus) PublishOrderCreated(_ context.Context, e domain.OrderEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, e)
	return m.err
}

func (m *mockEventBus) PublishOrderPaid(_ context.Context, e domain.OrderEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paid = append(m.paid, e)
	return m.err
}

func (m *mockEventBus) PublishOrderStatusChanged(_ context.Context, e domain.StatusChanged) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusChanged = append(m.statusChanged, e)
	return m.err
}

func (m *mockEventBus) PublishReconciliationRequired(context.Context, domain.ReconciliationRequired) error {
	return m.err
}

// nonTxRepository hides CreateWithLineItems so the compensating path runs.
type nonTxRepository struct {
	ports.OrderRepository
	insertItemsFn func(ctx context.Context, orderID string, items []domain.LineItem) error
	deleteFn      func(ctx context.Context, id string) error
}

func (r *nonTxRepository) InsertLineItems(ctx context.Context, orderID string, items []domain.LineItem) error {
	if r.insertItemsFn != nil {
		return r.insertItemsFn(ctx, orderID, items)
	}
	return r.OrderRepository.InsertLineItems(ctx, orderID, items)
}

func (r *nonTxRepository) Delete(ctx context.Context, id string) error {
	if r.deleteFn != nil {
		return r.deleteFn(ctx, id)
	}
	return r.OrderRepository.Delete(ctx, id)
}

func validCommand() commandInput {
	return commandInput{
		CustomerID:        "user-1",
		ShippingAddressID: "addr-1",
		Subtotal:          1000,
		ShippingCost:      50,
		Discount:          100,
		Total:             950,
	}
}

type commandInput struct {
	CustomerID        string
	ShippingAddressID string
	Subtotal          int64
	ShippingCost      int64
	Discount          int64
	Total             int64
}
