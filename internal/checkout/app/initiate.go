package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dejobratic/storefront/internal/checkout/domain"
	paymentdomain "github.com/dejobratic/storefront/internal/payments/domain"
	"github.com/dejobratic/storefront/internal/telemetry"
)

type InitiateCommand struct {
	UserID   string
	Amount   decimal.Decimal
	Currency string
	Notes    map[string]string
}

type InitiateResult struct {
	IntentID    string          `json:"intentId"`
	PublicKey   string          `json:"publicKey"`
	Amount      decimal.Decimal `json:"amount"`
	AmountMinor int64           `json:"amountMinor"`
	Currency    string          `json:"currency"`
	Receipt     string          `json:"receipt"`
	Provider    json.RawMessage `json:"provider,omitempty"`
}

// Initiate asks the provider for an intent covering cmd.Amount and records it
// for the caller. Gateway failures are returned unmasked.
func (o *Orchestrator) Initiate(ctx context.Context, cmd InitiateCommand) (*InitiateResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "Checkout.Initiate")
	defer span.End()

	if cmd.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}
	amount := cmd.Amount
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	if !domain.HasMinorPrecision(amount) {
		return nil, domain.ErrAmountPrecision
	}
	minor := domain.ToMinorUnits(amount)
	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		currency = o.currency
	}

	receipt := uuid.NewString()
	intent, err := o.gateway.CreateIntent(ctx, paymentdomain.IntentRequest{
		AmountMinor: minor,
		Currency:    currency,
		Receipt:     receipt,
		Notes:       cmd.Notes,
	})
	if err != nil {
		o.metrics.RecordIntentCreated(ctx, false)
		telemetry.RecordSpanError(span, err)
		o.logger.ErrorContext(ctx, "failed to create payment intent",
			"user_id", cmd.UserID,
			"amount_minor", minor,
			"currency", currency,
			"error", err,
		)
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	now := o.now()
	record := paymentdomain.IntentRecord{
		ID:        uuid.NewString(),
		UserID:    cmd.UserID,
		IntentID:  intent.ID,
		Amount:    amount,
		Currency:  currency,
		Status:    paymentdomain.IntentCreated,
		Receipt:   receipt,
		Notes:     cmd.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.intents.Create(ctx, record); err != nil {
		o.metrics.RecordIntentCreated(ctx, false)
		telemetry.RecordSpanError(span, err)
		return nil, fmt.Errorf("record payment intent: %w", err)
	}

	o.metrics.RecordIntentCreated(ctx, true)
	telemetry.AddSpanAttributes(span,
		attribute.String("payment.intent_id", intent.ID),
		attribute.Int64("payment.amount_minor", minor),
	)
	telemetry.SetSpanSuccess(span)
	o.logger.InfoContext(ctx, "payment intent created",
		"intent_id", intent.ID,
		"user_id", cmd.UserID,
		"amount", amount.String(),
		"currency", currency,
	)

	return &InitiateResult{
		IntentID:    intent.ID,
		PublicKey:   o.gateway.PublicKey(),
		Amount:      amount,
		AmountMinor: minor,
		Currency:    currency,
		Receipt:     receipt,
		Provider:    intent.Payload,
	}, nil
}
