package app_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/dejobratic/storefront/internal/alerting"
	checkoutmemory "github.com/dejobratic/storefront/internal/checkout/adapters/memory"
	"github.com/dejobratic/storefront/internal/checkout/app"
	"github.com/dejobratic/storefront/internal/checkout/domain"
	checkoutmetrics "github.com/dejobratic/storefront/internal/checkout/metrics"
	"github.com/dejobratic/storefront/internal/checkout/ports"
	couponmemory "github.com/dejobratic/storefront/internal/coupons/adapters/memory"
	couponapp "github.com/dejobratic/storefront/internal/coupons/app"
	coupondomain "github.com/dejobratic/storefront/internal/coupons/domain"
	inventorymemory "github.com/dejobratic/storefront/internal/inventory/adapters/memory"
	inventoryapp "github.com/dejobratic/storefront/internal/inventory/app"
	inventorydomain "github.com/dejobratic/storefront/internal/inventory/domain"
	"github.com/dejobratic/storefront/internal/kafka"
	orderadapters "github.com/dejobratic/storefront/internal/orders/adapters"
	ordermemory "github.com/dejobratic/storefront/internal/orders/adapters/memory"
	orderapp "github.com/dejobratic/storefront/internal/orders/app"
	"github.com/dejobratic/storefront/internal/orders/app/commands"
	orderdomain "github.com/dejobratic/storefront/internal/orders/domain"
	ordermetrics "github.com/dejobratic/storefront/internal/orders/metrics"
	paymentmemory "github.com/dejobratic/storefront/internal/payments/adapters/memory"
	paymentdomain "github.com/dejobratic/storefront/internal/payments/domain"
)

var providerSecret = []byte("provider-secret")

type fakeGateway struct {
	mu       sync.Mutex
	err      error
	requests []paymentdomain.IntentRequest
}

func (g *fakeGateway) CreateIntent(_ context.Context, req paymentdomain.IntentRequest) (paymentdomain.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return paymentdomain.Intent{}, g.err
	}
	id := fmt.Sprintf("order_%d", len(g.requests))
	payload, _ := json.Marshal(map[string]any{"id": id, "amount": req.AmountMinor, "currency": req.Currency})
	return paymentdomain.Intent{ID: id, AmountMinor: req.AmountMinor, Currency: req.Currency, Status: "created", Payload: payload}, nil
}

func (g *fakeGateway) VerifySignature(intentID, paymentID, signature string) bool {
	return paymentdomain.VerifySignature(providerSecret, intentID, paymentID, signature)
}

func (g *fakeGateway) PublicKey() string { return "rzp_test_key" }

type recordingAlerter struct {
	mu     sync.Mutex
	alerts []alerting.Alert
}

func (a *recordingAlerter) Alert(_ context.Context, alert alerting.Alert) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, alert)
	return nil
}

func (a *recordingAlerter) reasons() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.alerts))
	for _, alert := range a.alerts {
		out = append(out, alert.Reason)
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []orderdomain.ReconciliationRequired
}

func (p *recordingPublisher) PublishReconciliationRequired(_ context.Context, e orderdomain.ReconciliationRequired) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

// flakyLedger fails order creation while createErr is set.
type flakyLedger struct {
	ports.OrderLedger
	mu        sync.Mutex
	createErr error
}

func (l *flakyLedger) setCreateErr(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.createErr = err
}

func (l *flakyLedger) CreatePendingOrder(ctx context.Context, cmd commands.CreatePendingOrderCommand) (*orderdomain.Order, error) {
	l.mu.Lock()
	err := l.createErr
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return l.OrderLedger.CreatePendingOrder(ctx, cmd)
}

type harness struct {
	orchestrator    *app.Orchestrator
	gateway         *fakeGateway
	ledger          *flakyLedger
	orders          *orderapp.Ledger
	intents         *paymentmemory.Repository
	products        *inventorymemory.Repository
	coupons         *couponmemory.Repository
	reconciliations *checkoutmemory.Store
	alerts          *recordingAlerter
	events          *recordingPublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader())).Meter("test")

	orderMetrics, err := ordermetrics.NewMetrics(meter)
	require.NoError(t, err)
	checkoutMetrics, err := checkoutmetrics.NewMetrics(meter)
	require.NoError(t, err)

	products := inventorymemory.NewRepository(
		inventorydomain.Product{ID: "p-1", SKU: "MUG-1", Name: "Mug", Price: decimal.NewFromInt(250), Stock: 5},
		inventorydomain.Product{ID: "p-2", SKU: "TEE-1", Name: "Tee", Price: decimal.NewFromInt(500), Stock: 3},
	)
	coupons := couponmemory.NewRepository(coupondomain.Coupon{
		Code:       "WELCOME10",
		Type:       coupondomain.TypeFixed,
		Value:      decimal.NewFromInt(100),
		ExpiresAt:  time.Now().Add(24 * time.Hour),
		UsageLimit: 10,
		Active:     true,
	})

	catalog := orderadapters.NewInventoryCatalog(inventoryapp.NewCatalog(products))
	orders := orderapp.NewLedger(ordermemory.NewRepository(), catalog, kafka.NewNoopEventBus(logger), logger, orderMetrics)

	h := &harness{
		gateway:         &fakeGateway{},
		ledger:          &flakyLedger{OrderLedger: orders},
		orders:          orders,
		intents:         paymentmemory.NewRepository(),
		products:        products,
		coupons:         coupons,
		reconciliations: checkoutmemory.NewStore(),
		alerts:          &recordingAlerter{},
		events:          &recordingPublisher{},
	}
	h.orchestrator = app.NewOrchestrator(app.Dependencies{
		Gateway:         h.gateway,
		Intents:         h.intents,
		Ledger:          h.ledger,
		Stock:           inventoryapp.NewAdjuster(products, logger),
		Coupons:         couponapp.NewValidator(coupons, logger),
		Reconciliations: h.reconciliations,
		Events:          h.events,
		Alerter:         h.alerts,
	}, "INR", logger, checkoutMetrics)
	return h
}

// draft is 2 mugs and a tee with WELCOME10: 1000 + 50 - 100 = 950.
func draft() domain.OrderDraft {
	return domain.OrderDraft{
		ShippingAddressID: "addr-1",
		Items: []domain.DraftItem{
			{ProductID: "p-1", Quantity: 2, Color: "blue"},
			{ProductID: "p-2", Quantity: 1, Size: "M"},
		},
		Subtotal:     decimal.NewFromInt(1000),
		ShippingCost: decimal.NewFromInt(50),
		Discount:     decimal.NewFromInt(100),
		Total:        decimal.NewFromInt(950),
		CouponCode:   "welcome10",
	}
}

func (h *harness) initiate(t *testing.T, userID string, amount decimal.Decimal) string {
	t.Helper()
	res, err := h.orchestrator.Initiate(context.Background(), app.InitiateCommand{UserID: userID, Amount: amount})
	require.NoError(t, err)
	return res.IntentID
}

func confirmCommand(userID, intentID, paymentID string, d domain.OrderDraft) app.ConfirmCommand {
	return app.ConfirmCommand{
		UserID:    userID,
		IntentID:  intentID,
		PaymentID: paymentID,
		Signature: paymentdomain.Sign(providerSecret, intentID, paymentID),
		Draft:     d,
	}
}

func (h *harness) stock(t *testing.T, productID string) int {
	t.Helper()
	stock, err := h.products.Stock(context.Background(), productID)
	require.NoError(t, err)
	return stock
}

func (h *harness) usedCount(t *testing.T, code string) int {
	t.Helper()
	coupon, err := h.coupons.GetByCode(context.Background(), code)
	require.NoError(t, err)
	return coupon.UsedCount
}

func (h *harness) openReasons(t *testing.T) []string {
	t.Helper()
	records, err := h.reconciliations.ListUnresolved(context.Background(), 0)
	require.NoError(t, err)
	reasons := make([]string, 0, len(records))
	for _, r := range records {
		reasons = append(reasons, r.Reason)
	}
	return reasons
}

func inventoryTee(stock int) inventorydomain.Product {
	return inventorydomain.Product{ID: "p-2", SKU: "TEE-1", Name: "Tee", Price: decimal.NewFromInt(500), Stock: stock}
}
