// Package alerting raises operational alerts for paid orders whose
// bookkeeping needs manual reconciliation.
package alerting

import (
	"context"
	"errors"
	"log/slog"
)

// Alert describes one reconciliation-worthy event.
type Alert struct {
	Reason    string
	OrderID   string
	IntentID  string
	PaymentID string
	Details   map[string]any
}

// Alerter delivers alerts to an operator-facing sink.
type Alerter interface {
	Alert(ctx context.Context, alert Alert) error
}

// LogAlerter writes alerts as error-level log entries.
type LogAlerter struct {
	logger *slog.Logger
}

func NewLogAlerter(logger *slog.Logger) *LogAlerter {
	return &LogAlerter{logger: logger}
}

func (a *LogAlerter) Alert(ctx context.Context, alert Alert) error {
	a.logger.ErrorContext(ctx, "reconciliation required",
		"reason", alert.Reason,
		"order_id", alert.OrderID,
		"intent_id", alert.IntentID,
		"payment_id", alert.PaymentID,
		"details", alert.Details,
	)
	return nil
}

// Multi fans an alert out to every sink and joins their errors.
type Multi []Alerter

func (m Multi) Alert(ctx context.Context, alert Alert) error {
	var errs []error
	for _, a := range m {
		if err := a.Alert(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
