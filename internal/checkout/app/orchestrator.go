package app

import (
	"log/slog"
	"time"

	"github.com/dejobratic/storefront/internal/alerting"
	"github.com/dejobratic/storefront/internal/checkout/metrics"
	"github.com/dejobratic/storefront/internal/checkout/ports"
	paymentports "github.com/dejobratic/storefront/internal/payments/ports"
)

// Dependencies are the collaborators the orchestrator drives.
type Dependencies struct {
	Gateway         paymentports.Gateway
	Intents         paymentports.IntentRepository
	Ledger          ports.OrderLedger
	Stock           ports.StockAdjuster
	Coupons         ports.Coupons
	Reconciliations ports.ReconciliationStore
	Events          ports.ReconciliationPublisher
	Alerter         alerting.Alerter
}

// Orchestrator runs the two client calls of a checkout: creating a payment
// intent and confirming the signed payment.
type Orchestrator struct {
	gateway         paymentports.Gateway
	intents         paymentports.IntentRepository
	ledger          ports.OrderLedger
	stock           ports.StockAdjuster
	coupons         ports.Coupons
	reconciliations ports.ReconciliationStore
	events          ports.ReconciliationPublisher
	alerter         alerting.Alerter
	currency        string
	logger          *slog.Logger
	metrics         *metrics.Metrics
	now             func() time.Time
}

// NewOrchestrator builds an Orchestrator. currency is used for intents that
// do not name one.
func NewOrchestrator(deps Dependencies, currency string, logger *slog.Logger, metrics *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		gateway:         deps.Gateway,
		intents:         deps.Intents,
		ledger:          deps.Ledger,
		stock:           deps.Stock,
		coupons:         deps.Coupons,
		reconciliations: deps.Reconciliations,
		events:          deps.Events,
		alerter:         deps.Alerter,
		currency:        currency,
		logger:          logger,
		metrics:         metrics,
		now:             func() time.Time { return time.Now().UTC() },
	}
}
