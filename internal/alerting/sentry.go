package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// SentryAlerter reports alerts as Sentry error events tagged with the
// order, intent and payment ids.
type SentryAlerter struct {
	hub *sentry.Hub
}

func NewSentryAlerter(hub *sentry.Hub) *SentryAlerter {
	return &SentryAlerter{hub: hub}
}

// NewSentryHub builds a hub for dsn. An empty dsn yields a hub that drops events.
func NewSentryHub(dsn, environment, release string) (*sentry.Hub, error) {
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
	})
	if err != nil {
		return nil, fmt.Errorf("create sentry client: %w", err)
	}
	return sentry.NewHub(client, sentry.NewScope()), nil
}

func (a *SentryAlerter) Alert(_ context.Context, alert Alert) error {
	a.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		scope.SetTag("reason", alert.Reason)
		if alert.OrderID != "" {
			scope.SetTag("order_id", alert.OrderID)
		}
		scope.SetTag("intent_id", alert.IntentID)
		scope.SetTag("payment_id", alert.PaymentID)
		if len(alert.Details) > 0 {
			scope.SetContext("reconciliation", sentry.Context(alert.Details))
		}
		a.hub.CaptureMessage("reconciliation required: " + alert.Reason)
	})
	return nil
}

// Flush waits for buffered events to be delivered.
func (a *SentryAlerter) Flush(timeout time.Duration) bool {
	return a.hub.Flush(timeout)
}
