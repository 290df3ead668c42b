package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dejobratic/storefront/internal/alerting"
	"github.com/dejobratic/storefront/internal/apperr"
	"github.com/dejobratic/storefront/internal/checkout/domain"
	orderdomain "github.com/dejobratic/storefront/internal/orders/domain"
)

// DefaultReconciliationLimit bounds ListReconciliations when no limit is given.
const DefaultReconciliationLimit = 100

// reconcile persists f as a reconciliation record, then alerts and publishes
// when the record is new. None of its failures reach the caller; the alert is
// raised even when the record could not be stored.
func (o *Orchestrator) reconcile(ctx context.Context, cmd ConfirmCommand, orderID string, f failure) {
	record := domain.Reconciliation{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		IntentID:  cmd.IntentID,
		PaymentID: cmd.PaymentID,
		Reason:    f.reason,
		Details:   f.details,
		CreatedAt: o.now(),
	}

	created, err := o.reconciliations.Create(ctx, record)
	if err != nil {
		o.logger.ErrorContext(ctx, "failed to store reconciliation record",
			"reason", f.reason,
			"order_id", orderID,
			"intent_id", cmd.IntentID,
			"payment_id", cmd.PaymentID,
			"error", err,
		)
		created = true
	}
	if !created {
		return
	}

	o.metrics.RecordReconciliation(ctx, f.reason)

	if err := o.alerter.Alert(ctx, alerting.Alert{
		Reason:    f.reason,
		OrderID:   orderID,
		IntentID:  cmd.IntentID,
		PaymentID: cmd.PaymentID,
		Details:   f.details,
	}); err != nil {
		o.logger.ErrorContext(ctx, "failed to raise reconciliation alert",
			"reason", f.reason,
			"intent_id", cmd.IntentID,
			"error", err,
		)
	}

	if err := o.events.PublishReconciliationRequired(ctx, orderdomain.ReconciliationRequired{
		FlagID:     record.ID,
		OrderID:    orderID,
		IntentID:   cmd.IntentID,
		PaymentID:  cmd.PaymentID,
		Reason:     f.reason,
		OccurredAt: record.CreatedAt,
	}); err != nil {
		o.logger.WarnContext(ctx, "failed to publish reconciliation event",
			"flag_id", record.ID,
			"error", err,
		)
	}
}

// ListReconciliations returns unresolved records, oldest first.
func (o *Orchestrator) ListReconciliations(ctx context.Context, limit int) ([]domain.Reconciliation, error) {
	if limit <= 0 || limit > DefaultReconciliationLimit {
		limit = DefaultReconciliationLimit
	}
	records, err := o.reconciliations.ListUnresolved(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list reconciliations: %w", err)
	}
	return records, nil
}

// ResolveReconciliation closes a record with the operator's resolution note.
func (o *Orchestrator) ResolveReconciliation(ctx context.Context, id, resolution, resolvedBy string) (*domain.Reconciliation, error) {
	resolution = strings.TrimSpace(resolution)
	if resolution == "" {
		return nil, apperr.Validation("resolution is required", apperr.FieldViolation{Field: "resolution", Rule: "required"})
	}

	record, err := o.reconciliations.Resolve(ctx, id, resolution, o.now().Truncate(time.Microsecond))
	if err != nil {
		return nil, fmt.Errorf("resolve reconciliation: %w", err)
	}

	o.logger.InfoContext(ctx, "reconciliation resolved",
		"flag_id", id,
		"reason", record.Reason,
		"order_id", record.OrderID,
		"resolved_by", resolvedBy,
	)
	return record, nil
}
