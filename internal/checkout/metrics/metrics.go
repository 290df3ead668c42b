package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Confirmation outcomes.
const (
	OutcomeConfirmed              = "confirmed"
	OutcomeAlreadyConfirmed       = "already_confirmed"
	OutcomeReconciliationRequired = "reconciliation_required"
	OutcomeInvalidSignature       = "invalid_signature"
	OutcomeLedgerInconsistency    = "ledger_inconsistency"
	OutcomeRejected               = "rejected"
)

type Metrics struct {
	intentsCreated     metric.Int64Counter
	confirmations      metric.Int64Counter
	reconciliationsNew metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.intentsCreated, err = meter.Int64Counter(
		"payment_intents_created_total",
		metric.WithDescription("Payment intents requested from the provider"),
		metric.WithUnit("{intent}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create payment_intents_created_total counter: %w", err)
	}

	m.confirmations, err = meter.Int64Counter(
		"checkout_confirmations_total",
		metric.WithDescription("Payment confirmations by outcome"),
		metric.WithUnit("{confirmation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create checkout_confirmations_total counter: %w", err)
	}

	m.reconciliationsNew, err = meter.Int64Counter(
		"checkout_reconciliations_total",
		metric.WithDescription("Reconciliation records opened by reason"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create checkout_reconciliations_total counter: %w", err)
	}

	return m, nil
}

func (m *Metrics) RecordIntentCreated(ctx context.Context, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.intentsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func (m *Metrics) RecordConfirmation(ctx context.Context, outcome string) {
	m.confirmations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) RecordReconciliation(ctx context.Context, reason string) {
	m.reconciliationsNew.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
