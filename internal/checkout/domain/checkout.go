package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dejobratic/storefront/internal/apperr"
)

// DraftItem is one cart line submitted with a payment confirmation.
type DraftItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Color     string `json:"color,omitempty"`
	Size      string `json:"size,omitempty"`
}

// OrderDraft is the order the client expects to be recorded once payment
// is confirmed.
type OrderDraft struct {
	ShippingAddressID string          `json:"shippingId"`
	Items             []DraftItem     `json:"items"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	ShippingCost      decimal.Decimal `json:"shippingCost"`
	Discount          decimal.Decimal `json:"discount"`
	Total             decimal.Decimal `json:"total"`
	CouponCode        string          `json:"couponCode,omitempty"`
	Notes             string          `json:"notes,omitempty"`
}

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts a major-unit amount to the smallest currency unit,
// rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// HasMinorPrecision reports whether amount is a whole number of minor units.
// Trailing zeros such as 10.500 are allowed.
func HasMinorPrecision(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(2))
}

// Reasons recorded on reconciliation flags.
const (
	ReasonOrderNotRecorded       = "order_not_recorded"
	ReasonPaymentNotRecorded     = "payment_not_recorded"
	ReasonStockAdjustmentFailed  = "stock_adjustment_failed"
	ReasonCouponInvalid          = "coupon_invalid"
	ReasonCouponMismatch         = "coupon_mismatch"
	ReasonCouponRedemptionFailed = "coupon_redemption_failed"
)

// Reconciliation is a persisted note that a verified payment's bookkeeping
// needs an operator. At most one unresolved record exists per intent and reason.
type Reconciliation struct {
	ID         string         `json:"id"`
	OrderID    string         `json:"orderId,omitempty"`
	IntentID   string         `json:"intentId"`
	PaymentID  string         `json:"paymentId"`
	Reason     string         `json:"reason"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	ResolvedAt *time.Time     `json:"resolvedAt,omitempty"`
	Resolution string         `json:"resolution,omitempty"`
}

func (r Reconciliation) IsResolved() bool {
	return r.ResolvedAt != nil
}

var (
	ErrUnauthenticated        = apperr.New(apperr.KindUnauthenticated, "a valid session for this payment is required")
	ErrInvalidSignature       = apperr.New(apperr.KindInvalidSignature, "payment signature is invalid")
	ErrInvalidAmount          = apperr.Validation("amount must be positive", apperr.FieldViolation{Field: "amount", Rule: "gt"})
	ErrAmountPrecision        = apperr.Validation("amount must have at most two decimal places", apperr.FieldViolation{Field: "amount", Rule: "decimals"})
	ErrDraftAmountMismatch    = apperr.Validation("order total does not match the paid amount", apperr.FieldViolation{Field: "orderDraft.total", Rule: "intent_amount"})
	ErrPaymentConflict        = apperr.New(apperr.KindConflict, "payment intent was completed by a different payment")
	ErrOrderNotRecorded       = apperr.New(apperr.KindLedgerInconsistency, "payment received but the order could not be recorded; it has been flagged for reconciliation")
	ErrReconciliationNotFound = apperr.New(apperr.KindNotFound, "reconciliation record not found")
	ErrAlreadyResolved        = apperr.New(apperr.KindConflict, "reconciliation record already resolved")
)
