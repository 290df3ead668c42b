package commands

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/metrics"
	"github.com/dejobratic/storefront/internal/telemetry"
)

type ObservableCreatePendingOrderHandler struct {
	handler CreatePendingOrderHandler
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewObservableCreatePendingOrderHandler(handler CreatePendingOrderHandler, logger *slog.Logger, metrics *metrics.Metrics) *ObservableCreatePendingOrderHandler {
	return &ObservableCreatePendingOrderHandler{
		handler: handler,
		logger:  logger,
		metrics: metrics,
	}
}

func (o *ObservableCreatePendingOrderHandler) Handle(ctx context.Context, cmd CreatePendingOrderCommand) (*domain.Order, error) {
	ctx, span := telemetry.StartSpan(ctx, "CreatePendingOrderCommand.Handle")
	defer span.End()

	origin := metrics.OriginDirect
	if cmd.PaymentIntentID != "" {
		origin = metrics.OriginCheckout
	}
	start := time.Now()
	var err error
	defer func() {
		o.metrics.RecordOrderCreated(ctx, origin, time.Since(start).Seconds(), err)
	}()

	o.logger.InfoContext(ctx, "creating order",
		"customer_id", cmd.CustomerID,
		"items", len(cmd.Items),
		"total", cmd.Total.String(),
		"payment_intent_id", cmd.PaymentIntentID,
	)

	var order *domain.Order
	order, err = o.handler.Handle(ctx, cmd)

	if err != nil {
		telemetry.RecordSpanError(span, err)
		o.logger.ErrorContext(ctx, "failed to create order",
			"error", err,
			"customer_id", cmd.CustomerID,
			"payment_intent_id", cmd.PaymentIntentID,
		)
		return nil, err
	}

	telemetry.AddSpanAttributes(span,
		attribute.String("order.id", order.ID),
		attribute.String("order.total", order.Total.String()),
		attribute.Int("order.items", len(order.Items)),
		attribute.String("order.status", string(order.Status)),
		attribute.String("order.origin", origin),
	)

	o.logger.InfoContext(ctx, "order created successfully",
		"order_id", order.ID,
		"customer_id", order.CustomerID,
	)

	telemetry.SetSpanSuccess(span)

	return order, nil
}
