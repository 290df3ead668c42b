package ports

import (
	"context"
	"time"

	"github.com/dejobratic/storefront/internal/apperr"
	"github.com/dejobratic/storefront/internal/payments/domain"
)

// Gateway is the payment provider boundary.
type Gateway interface {
	// CreateIntent performs one outbound call. Failures the caller may retry
	// are classified apperr.KindGatewayUnavailable.
	CreateIntent(ctx context.Context, req domain.IntentRequest) (domain.Intent, error)
	VerifySignature(intentID, paymentID, signature string) bool
	// PublicKey is the key id the client SDK needs to open the payment form.
	PublicKey() string
}

// IntentRepository stores intent records.
type IntentRepository interface {
	Create(ctx context.Context, record domain.IntentRecord) error
	GetByIntentID(ctx context.Context, intentID string) (*domain.IntentRecord, error)
	// MarkCompleted moves a created intent to completed. It reports false
	// when the intent was no longer in created.
	MarkCompleted(ctx context.Context, intentID, paymentID, signature string, at time.Time) (bool, error)
}

var (
	ErrIntentNotFound  = apperr.New(apperr.KindNotFound, "payment intent not found")
	ErrDuplicateIntent = apperr.New(apperr.KindConflict, "payment intent already recorded")
	ErrInvalidAmount   = apperr.Validation("amount must be positive", apperr.FieldViolation{Field: "amount", Rule: "gt"})
)
