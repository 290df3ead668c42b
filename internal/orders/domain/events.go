package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderEvent is the payload published when an order is created or paid.
type OrderEvent struct {
	OrderID       string          `json:"orderId"`
	CustomerID    string          `json:"customerId,omitempty"`
	Status        OrderStatus     `json:"status"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	PaymentID     string          `json:"paymentId,omitempty"`
	Total         decimal.Decimal `json:"total"`
	CouponCode    string          `json:"couponCode,omitempty"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

// NewOrderEvent snapshots order at the moment of publication.
func NewOrderEvent(order Order, at time.Time) OrderEvent {
	return OrderEvent{
		OrderID:       order.ID,
		CustomerID:    order.CustomerID,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		PaymentID:     order.PaymentID,
		Total:         order.Total,
		CouponCode:    order.CouponCode,
		OccurredAt:    at,
	}
}

// StatusChanged records an admin or customer driven status transition.
type StatusChanged struct {
	OrderID        string      `json:"orderId"`
	From           OrderStatus `json:"from"`
	To             OrderStatus `json:"to"`
	TrackingNumber string      `json:"trackingNumber,omitempty"`
	OccurredAt     time.Time   `json:"occurredAt"`
}

// ReconciliationRequired announces a paid order whose bookkeeping did not
// complete cleanly.
type ReconciliationRequired struct {
	FlagID     string    `json:"flagId"`
	OrderID    string    `json:"orderId,omitempty"`
	IntentID   string    `json:"intentId"`
	PaymentID  string    `json:"paymentId"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurredAt"`
}
