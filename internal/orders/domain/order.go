package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dejobratic/storefront/internal/apperr"
)

// OrderStatus captures the fulfilment lifecycle of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusShipped   OrderStatus = "shipped"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// PaymentStatus tracks money movement independently of fulfilment.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// ParseStatus returns the status named by s.
func ParseStatus(s string) (OrderStatus, bool) {
	switch status := OrderStatus(s); status {
	case StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled:
		return status, true
	default:
		return "", false
	}
}

// LineItem is a product snapshot taken when the order is placed. It never
// changes after creation, even if the catalog entry does.
type LineItem struct {
	ProductID    string          `json:"productId"`
	ProductName  string          `json:"productName"`
	ProductSKU   string          `json:"productSku"`
	ProductPrice decimal.Decimal `json:"productPrice"`
	ProductImage string          `json:"productImage"`
	Quantity     int             `json:"quantity"`
	Color        string          `json:"color,omitempty"`
	Size         string          `json:"size,omitempty"`
}

// LineTotal is price times quantity.
func (li LineItem) LineTotal() decimal.Decimal {
	return li.ProductPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Order is one purchase attempt and its payment state.
type Order struct {
	ID                     string          `json:"id"`
	CustomerID             string          `json:"customerId,omitempty"`
	ShippingAddressID      string          `json:"shippingAddressId"`
	Items                  []LineItem      `json:"items"`
	Subtotal               decimal.Decimal `json:"subtotal"`
	ShippingCost           decimal.Decimal `json:"shippingCost"`
	Discount               decimal.Decimal `json:"discount"`
	Total                  decimal.Decimal `json:"total"`
	CouponCode             string          `json:"couponCode,omitempty"`
	Status                 OrderStatus     `json:"status"`
	PaymentStatus          PaymentStatus   `json:"paymentStatus"`
	PaymentIntentID        string          `json:"paymentIntentId,omitempty"`
	PaymentID              string          `json:"paymentId,omitempty"`
	TrackingNumber         string          `json:"trackingNumber,omitempty"`
	Notes                  string          `json:"notes,omitempty"`
	ReconciliationRequired bool            `json:"reconciliationRequired"`
	CreatedAt              time.Time       `json:"createdAt"`
	UpdatedAt              time.Time       `json:"updatedAt"`
}

var (
	ErrAmountMismatch = &apperr.Error{
		Kind:    apperr.KindValidation,
		Message: "total must equal subtotal + shipping cost - discount",
		Fields:  []apperr.FieldViolation{{Field: "total", Rule: "amount_mismatch"}},
	}
	ErrNoItems = &apperr.Error{
		Kind:    apperr.KindValidation,
		Message: "order must contain at least one item",
		Fields:  []apperr.FieldViolation{{Field: "items", Rule: "min"}},
	}
	ErrInvalidQuantity = &apperr.Error{
		Kind:    apperr.KindValidation,
		Message: "item quantity must be positive",
		Fields:  []apperr.FieldViolation{{Field: "items", Rule: "quantity"}},
	}
	ErrNegativeAmount = &apperr.Error{
		Kind:    apperr.KindValidation,
		Message: "amounts must not be negative",
	}
	ErrSubtotalMismatch = &apperr.Error{
		Kind:    apperr.KindValidation,
		Message: "subtotal must equal the sum of item prices",
		Fields:  []apperr.FieldViolation{{Field: "subtotal", Rule: "subtotal_mismatch"}},
	}
	ErrInvalidTransition = apperr.New(apperr.KindConflict, "order status transition not allowed")
)

// CheckAmounts enforces total == subtotal + shippingCost - discount.
func CheckAmounts(subtotal, shippingCost, discount, total decimal.Decimal) error {
	for _, amount := range []decimal.Decimal{subtotal, shippingCost, discount, total} {
		if amount.IsNegative() {
			return ErrNegativeAmount
		}
	}
	if !subtotal.Add(shippingCost).Sub(discount).Equal(total) {
		return ErrAmountMismatch
	}
	return nil
}

// Validate ensures the order adheres to business constraints.
func (o Order) Validate() error {
	if len(o.Items) == 0 {
		return ErrNoItems
	}
	for _, item := range o.Items {
		if item.Quantity <= 0 {
			return ErrInvalidQuantity
		}
	}
	return CheckAmounts(o.Subtotal, o.ShippingCost, o.Discount, o.Total)
}

// ItemsSubtotal sums the line totals of items.
func ItemsSubtotal(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.LineTotal())
	}
	return sum
}

// IsTerminal indicates whether the order is in a terminal state.
func (o Order) IsTerminal() bool {
	return o.Status.IsTerminal()
}

func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition reports whether from -> to is an allowed status change.
func CanTransition(from, to OrderStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusConfirmed || to == StatusCancelled
	case StatusConfirmed:
		return to == StatusShipped || to == StatusCancelled
	case StatusShipped:
		return to == StatusDelivered
	default:
		return false
	}
}

// IsPaid reports whether payment has been captured for the order.
func (o Order) IsPaid() bool {
	return o.PaymentStatus == PaymentPaid
}
