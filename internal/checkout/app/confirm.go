package app

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dejobratic/storefront/internal/apperr"
	"github.com/dejobratic/storefront/internal/checkout/domain"
	"github.com/dejobratic/storefront/internal/checkout/metrics"
	coupondomain "github.com/dejobratic/storefront/internal/coupons/domain"
	"github.com/dejobratic/storefront/internal/orders/app/commands"
	orderdomain "github.com/dejobratic/storefront/internal/orders/domain"
	orderports "github.com/dejobratic/storefront/internal/orders/ports"
	paymentdomain "github.com/dejobratic/storefront/internal/payments/domain"
	"github.com/dejobratic/storefront/internal/telemetry"
)

type ConfirmCommand struct {
	UserID    string
	IntentID  string
	PaymentID string
	Signature string
	Draft     domain.OrderDraft
}

type ConfirmResult struct {
	Success                bool   `json:"success"`
	OrderID                string `json:"orderId"`
	AlreadyConfirmed       bool   `json:"alreadyConfirmed"`
	ReconciliationRequired bool   `json:"reconciliationRequired"`
}

// failure is one bookkeeping step that did not complete after payment.
type failure struct {
	reason  string
	details map[string]any
}

// Confirm verifies a signed payment and records the paid order. Every step
// after verification is safe to repeat, so a retry with the same proof
// resumes where a failed attempt stopped and returns the same order.
//
// Once the signature checks out nothing is rolled back: stock or coupon
// failures are recorded for reconciliation and the call still succeeds.
func (o *Orchestrator) Confirm(ctx context.Context, cmd ConfirmCommand) (*ConfirmResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "Checkout.Confirm")
	defer span.End()
	telemetry.AddSpanAttributes(span,
		attribute.String("payment.intent_id", cmd.IntentID),
		attribute.String("payment.id", cmd.PaymentID),
	)

	result, outcome, err := o.confirm(ctx, cmd)
	o.metrics.RecordConfirmation(ctx, outcome)
	if err != nil {
		telemetry.RecordSpanError(span, err)
		return nil, err
	}

	telemetry.AddSpanAttributes(span, attribute.String("order.id", result.OrderID))
	telemetry.SetSpanSuccess(span)
	return result, nil
}

func (o *Orchestrator) confirm(ctx context.Context, cmd ConfirmCommand) (*ConfirmResult, string, error) {
	if cmd.UserID == "" {
		return nil, metrics.OutcomeRejected, domain.ErrUnauthenticated
	}

	intent, err := o.intents.GetByIntentID(ctx, cmd.IntentID)
	if err != nil {
		return nil, metrics.OutcomeRejected, fmt.Errorf("get payment intent: %w", err)
	}
	if intent.UserID != cmd.UserID {
		o.logger.WarnContext(ctx, "payment confirmation from another user",
			"intent_id", cmd.IntentID,
			"user_id", cmd.UserID,
		)
		return nil, metrics.OutcomeRejected, domain.ErrUnauthenticated
	}

	if !o.gateway.VerifySignature(cmd.IntentID, cmd.PaymentID, cmd.Signature) {
		o.logger.WarnContext(ctx, "payment signature rejected",
			"security_event", true,
			"intent_id", cmd.IntentID,
			"payment_id", cmd.PaymentID,
			"user_id", cmd.UserID,
		)
		return nil, metrics.OutcomeInvalidSignature, domain.ErrInvalidSignature
	}

	draft := cmd.Draft
	if err := orderdomain.CheckAmounts(draft.Subtotal, draft.ShippingCost, draft.Discount, draft.Total); err != nil {
		return nil, metrics.OutcomeRejected, err
	}
	if !draft.Total.Equal(intent.Amount) {
		return nil, metrics.OutcomeRejected, domain.ErrDraftAmountMismatch
	}

	// The payment is verified; finish the bookkeeping even if the client goes away.
	ctx = context.WithoutCancel(ctx)

	if err := o.completeIntent(ctx, intent, cmd); err != nil {
		return nil, metrics.OutcomeRejected, err
	}

	order, err := o.recordOrder(ctx, cmd)
	if err != nil {
		o.reconcile(ctx, cmd, "", failure{
			reason:  domain.ReasonOrderNotRecorded,
			details: map[string]any{"draft": draft, "error": err.Error()},
		})
		return nil, metrics.OutcomeLedgerInconsistency, apperr.Wrap(apperr.KindLedgerInconsistency, domain.ErrOrderNotRecorded.Message, err)
	}

	paid, err := o.ledger.MarkPaid(ctx, order.ID, cmd.PaymentID)
	if err != nil {
		o.reconcile(ctx, cmd, order.ID, failure{
			reason:  domain.ReasonPaymentNotRecorded,
			details: map[string]any{"error": err.Error()},
		})
		o.flagOrder(ctx, order.ID)
		return nil, metrics.OutcomeLedgerInconsistency, apperr.Wrap(apperr.KindLedgerInconsistency, "payment received but the order could not be marked paid; it has been flagged for reconciliation", err)
	}

	failures := o.adjustStock(ctx, order)
	failures = append(failures, o.applyCoupon(ctx, order)...)

	res := &ConfirmResult{
		Success:                true,
		OrderID:                order.ID,
		AlreadyConfirmed:       paid.AlreadyPaid,
		ReconciliationRequired: order.ReconciliationRequired,
	}
	outcome := metrics.OutcomeConfirmed
	if paid.AlreadyPaid {
		outcome = metrics.OutcomeAlreadyConfirmed
	}
	if len(failures) > 0 {
		for _, f := range failures {
			o.reconcile(ctx, cmd, order.ID, f)
		}
		o.flagOrder(ctx, order.ID)
		res.ReconciliationRequired = true
		outcome = metrics.OutcomeReconciliationRequired
	}

	o.logger.InfoContext(ctx, "payment confirmed",
		"order_id", order.ID,
		"intent_id", cmd.IntentID,
		"payment_id", cmd.PaymentID,
		"already_confirmed", paid.AlreadyPaid,
		"reconciliation_required", res.ReconciliationRequired,
	)
	return res, outcome, nil
}

// completeIntent marks the intent completed by this payment. A retry with
// the payment that already completed it passes; any other payment conflicts.
func (o *Orchestrator) completeIntent(ctx context.Context, intent *paymentdomain.IntentRecord, cmd ConfirmCommand) error {
	if intent.Status == paymentdomain.IntentCreated {
		completed, err := o.intents.MarkCompleted(ctx, cmd.IntentID, cmd.PaymentID, cmd.Signature, o.now())
		if err != nil {
			return fmt.Errorf("complete payment intent: %w", err)
		}
		if completed {
			return nil
		}
		if intent, err = o.intents.GetByIntentID(ctx, cmd.IntentID); err != nil {
			return fmt.Errorf("get payment intent: %w", err)
		}
	}

	if intent.Status == paymentdomain.IntentCompleted && intent.PaymentID == cmd.PaymentID {
		return nil
	}
	o.logger.WarnContext(ctx, "payment intent already settled by another payment",
		"intent_id", cmd.IntentID,
		"payment_id", cmd.PaymentID,
		"recorded_payment_id", intent.PaymentID,
		"status", intent.Status,
	)
	return domain.ErrPaymentConflict
}

// recordOrder returns the order recorded for the intent, creating it from the
// draft on the first attempt.
func (o *Orchestrator) recordOrder(ctx context.Context, cmd ConfirmCommand) (*orderdomain.Order, error) {
	order, err := o.ledger.GetOrderByPaymentIntent(ctx, cmd.IntentID)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, orderports.ErrNotFound) {
		return nil, fmt.Errorf("find order for intent: %w", err)
	}

	draft := cmd.Draft
	items := make([]commands.LineItemInput, 0, len(draft.Items))
	for _, item := range draft.Items {
		items = append(items, commands.LineItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Color:     item.Color,
			Size:      item.Size,
		})
	}

	order, err = o.ledger.CreatePendingOrder(ctx, commands.CreatePendingOrderCommand{
		CustomerID:        cmd.UserID,
		ShippingAddressID: draft.ShippingAddressID,
		Items:             items,
		Subtotal:          draft.Subtotal,
		ShippingCost:      draft.ShippingCost,
		Discount:          draft.Discount,
		Total:             draft.Total,
		CouponCode:        coupondomain.NormalizeCode(draft.CouponCode),
		PaymentIntentID:   cmd.IntentID,
		Notes:             draft.Notes,
	})
	if errors.Is(err, orderports.ErrDuplicateIntent) {
		// A concurrent confirmation recorded it first.
		return o.ledger.GetOrderByPaymentIntent(ctx, cmd.IntentID)
	}
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return order, nil
}

// adjustStock takes stock for every line and reports the lines that failed.
// A failing line does not stop the remaining ones.
func (o *Orchestrator) adjustStock(ctx context.Context, order *orderdomain.Order) []failure {
	var failures []failure
	for _, item := range order.Items {
		err := o.stock.DecrementForOrder(ctx, order.ID, item.ProductID, item.Quantity)
		if err == nil {
			continue
		}
		failures = append(failures, failure{
			reason: domain.ReasonStockAdjustmentFailed,
			details: map[string]any{
				"productId": item.ProductID,
				"quantity":  item.Quantity,
				"error":     err.Error(),
			},
		})
	}
	if len(failures) > 1 {
		merged := make([]map[string]any, 0, len(failures))
		for _, f := range failures {
			merged = append(merged, f.details)
		}
		failures = []failure{{reason: domain.ReasonStockAdjustmentFailed, details: map[string]any{"items": merged}}}
	}
	return failures
}

// applyCoupon re-checks the recorded order's discount and counts the coupon
// use once per order. An order that already holds its redemption was checked
// by an earlier attempt and is left alone.
func (o *Orchestrator) applyCoupon(ctx context.Context, order *orderdomain.Order) []failure {
	code := coupondomain.NormalizeCode(order.CouponCode)
	if code == "" {
		if order.Discount.IsPositive() {
			return []failure{{
				reason:  domain.ReasonCouponMismatch,
				details: map[string]any{"orderDiscount": order.Discount.String(), "error": "discount without coupon"},
			}}
		}
		return nil
	}

	redeemed, err := o.coupons.Redeemed(ctx, code, order.ID)
	if err != nil {
		return []failure{{
			reason:  domain.ReasonCouponRedemptionFailed,
			details: map[string]any{"couponCode": code, "error": err.Error()},
		}}
	}
	if redeemed {
		return nil
	}

	discount, err := o.coupons.Validate(ctx, code, order.Subtotal)
	if err != nil {
		reason, rejected := coupondomain.Reason(err)
		if reason == coupondomain.ReasonLimitExceeded {
			if redeemed, redeemErr := o.coupons.Redeem(ctx, code, order.ID); redeemErr == nil && !redeemed {
				return nil
			}
		}
		details := map[string]any{"couponCode": code, "error": err.Error()}
		if rejected {
			details["rejection"] = reason
		}
		return []failure{{reason: domain.ReasonCouponInvalid, details: details}}
	}

	var failures []failure
	if expected := discount.Total(order.ShippingCost); !expected.Equal(order.Discount) {
		failures = append(failures, failure{
			reason: domain.ReasonCouponMismatch,
			details: map[string]any{
				"couponCode":       code,
				"orderDiscount":    order.Discount.String(),
				"expectedDiscount": expected.String(),
			},
		})
	}

	if _, err := o.coupons.Redeem(ctx, code, order.ID); err != nil {
		failures = append(failures, failure{
			reason:  domain.ReasonCouponRedemptionFailed,
			details: map[string]any{"couponCode": code, "error": err.Error()},
		})
	}
	return failures
}

func (o *Orchestrator) flagOrder(ctx context.Context, orderID string) {
	if err := o.ledger.FlagReconciliation(ctx, orderID); err != nil {
		o.logger.ErrorContext(ctx, "failed to flag order for reconciliation",
			"order_id", orderID,
			"error", err,
		)
	}
}
