package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dejobratic/storefront/internal/apperr"
)

// Type selects how a coupon's discount is computed.
type Type string

const (
	TypePercentage   Type = "percentage"
	TypeFixed        Type = "fixed"
	TypeFreeShipping Type = "free_shipping"
)

// Coupon is a discount rule. Codes are stored upper-cased.
type Coupon struct {
	Code          string           `json:"code"`
	Type          Type             `json:"type"`
	Value         decimal.Decimal  `json:"value"`
	MinOrderValue decimal.Decimal  `json:"minOrderValue"`
	MaxDiscount   *decimal.Decimal `json:"maxDiscount,omitempty"`
	ExpiresAt     time.Time        `json:"expiresAt"`
	UsageLimit    int              `json:"usageLimit"`
	UsedCount     int              `json:"usedCount"`
	Active        bool             `json:"active"`
}

// Rejection reasons reported as the rule of the "code" field.
const (
	ReasonNotFound      = "not_found"
	ReasonInactive      = "inactive"
	ReasonExpired       = "expired"
	ReasonLimitExceeded = "limit_exceeded"
	ReasonBelowMinimum  = "below_minimum"
)

func rejection(message, reason string) *apperr.Error {
	return apperr.Validation(message, apperr.FieldViolation{Field: "code", Rule: reason})
}

var (
	ErrNotFound      = rejection("coupon not found", ReasonNotFound)
	ErrInactive      = rejection("coupon is not active", ReasonInactive)
	ErrExpired       = rejection("coupon has expired", ReasonExpired)
	ErrLimitExceeded = rejection("coupon usage limit reached", ReasonLimitExceeded)
	ErrBelowMinimum  = rejection("order value is below the coupon minimum", ReasonBelowMinimum)
)

// Reason extracts the rejection reason from err, if it is one.
func Reason(err error) (string, bool) {
	appErr, ok := apperr.As(err)
	if !ok || appErr.Kind != apperr.KindValidation {
		return "", false
	}
	for _, f := range appErr.Fields {
		if f.Field == "code" {
			return f.Rule, true
		}
	}
	return "", false
}

// NormalizeCode trims and upper-cases a user supplied code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Discount is the outcome of applying a coupon to an order value.
type Discount struct {
	Code   string          `json:"code"`
	Type   Type            `json:"type"`
	Amount decimal.Decimal `json:"discount"`
}

// Total is the discount to subtract from the order, counting a free
// shipping waiver as the shipping cost.
func (d Discount) Total(shippingCost decimal.Decimal) decimal.Decimal {
	if d.Type == TypeFreeShipping {
		return shippingCost
	}
	return d.Amount
}

// Apply checks the coupon rules in order and computes the discount on
// orderValue. now is compared against the expiry.
func (c Coupon) Apply(orderValue decimal.Decimal, now time.Time) (Discount, error) {
	switch {
	case !c.Active:
		return Discount{}, ErrInactive
	case c.ExpiresAt.Before(now):
		return Discount{}, ErrExpired
	case c.UsedCount >= c.UsageLimit:
		return Discount{}, ErrLimitExceeded
	case orderValue.LessThan(c.MinOrderValue):
		return Discount{}, ErrBelowMinimum
	}

	var amount decimal.Decimal
	switch c.Type {
	case TypePercentage:
		amount = orderValue.Mul(c.Value).Div(decimal.NewFromInt(100)).Round(2)
		if c.MaxDiscount != nil && amount.GreaterThan(*c.MaxDiscount) {
			amount = *c.MaxDiscount
		}
	case TypeFixed:
		amount = decimal.Min(c.Value, orderValue)
	case TypeFreeShipping:
		amount = decimal.Zero
	}

	return Discount{Code: c.Code, Type: c.Type, Amount: amount}, nil
}
