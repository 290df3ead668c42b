package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// IntentStatus tracks a provider intent from creation to completion.
type IntentStatus string

const (
	IntentCreated   IntentStatus = "created"
	IntentCompleted IntentStatus = "completed"
	IntentFailed    IntentStatus = "failed"
)

// IntentRecord is the local record of a provider intent. It is correlated
// with orders by IntentID, never by foreign key.
type IntentRecord struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	IntentID  string            `json:"intentId"`
	Amount    decimal.Decimal   `json:"amount"`
	Currency  string            `json:"currency"`
	Status    IntentStatus      `json:"status"`
	Receipt   string            `json:"receipt"`
	Notes     map[string]string `json:"notes,omitempty"`
	PaymentID string            `json:"paymentId,omitempty"`
	Signature string            `json:"-"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// IntentRequest asks the provider to authorize AmountMinor units of Currency.
type IntentRequest struct {
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

// Intent is the provider's answer to an IntentRequest. Payload keeps the raw
// provider response for the client SDK.
type Intent struct {
	ID          string
	AmountMinor int64
	Currency    string
	Status      string
	Payload     json.RawMessage
}
