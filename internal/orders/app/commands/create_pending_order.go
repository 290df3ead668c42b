package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dejobratic/storefront/internal/apperr"
	coupondomain "github.com/dejobratic/storefront/internal/coupons/domain"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

// LineItemInput is one requested product line before it is snapshotted.
type LineItemInput struct {
	ProductID string
	Quantity  int
	Color     string
	Size      string
}

type CreatePendingOrderCommand struct {
	CustomerID        string
	ShippingAddressID string
	Items             []LineItemInput
	Subtotal          decimal.Decimal
	ShippingCost      decimal.Decimal
	Discount          decimal.Decimal
	Total             decimal.Decimal
	CouponCode        string
	PaymentIntentID   string
	Notes             string
}

// Validate checks the amount invariant before anything is looked up.
func (c CreatePendingOrderCommand) Validate() error {
	if len(c.Items) == 0 {
		return domain.ErrNoItems
	}
	for _, item := range c.Items {
		if item.Quantity <= 0 {
			return domain.ErrInvalidQuantity
		}
	}
	return domain.CheckAmounts(c.Subtotal, c.ShippingCost, c.Discount, c.Total)
}

type CreatePendingOrderHandler interface {
	Handle(ctx context.Context, cmd CreatePendingOrderCommand) (*domain.Order, error)
}

type CreatePendingOrderCommandHandler struct {
	repo    ports.OrderRepository
	catalog ports.ProductCatalog
	events  ports.EventBus
	logger  *slog.Logger
}

func NewCreatePendingOrderCommandHandler(
	repo ports.OrderRepository,
	catalog ports.ProductCatalog,
	events ports.EventBus,
	logger *slog.Logger,
) *CreatePendingOrderCommandHandler {
	return &CreatePendingOrderCommandHandler{
		repo:    repo,
		catalog: catalog,
		events:  events,
		logger:  logger,
	}
}

func (h *CreatePendingOrderCommandHandler) Handle(ctx context.Context, cmd CreatePendingOrderCommand) (*domain.Order, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	items, err := h.snapshotItems(ctx, cmd.Items)
	if err != nil {
		return nil, err
	}
	if !domain.ItemsSubtotal(items).Equal(cmd.Subtotal) {
		return nil, domain.ErrSubtotalMismatch
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:                uuid.NewString(),
		CustomerID:        cmd.CustomerID,
		ShippingAddressID: cmd.ShippingAddressID,
		Items:             items,
		Subtotal:          cmd.Subtotal,
		ShippingCost:      cmd.ShippingCost,
		Discount:          cmd.Discount,
		Total:             cmd.Total,
		CouponCode:        coupondomain.NormalizeCode(cmd.CouponCode),
		Status:            domain.StatusPending,
		PaymentStatus:     domain.PaymentPending,
		PaymentIntentID:   cmd.PaymentIntentID,
		Notes:             cmd.Notes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := order.Validate(); err != nil {
		return nil, err
	}

	if err := h.persist(ctx, order); err != nil {
		return nil, err
	}

	if err := h.events.PublishOrderCreated(ctx, domain.NewOrderEvent(order, now)); err != nil {
		h.logger.WarnContext(ctx, "order saved but failed to publish event",
			"order_id", order.ID,
			"error", err,
		)
	}

	return &order, nil
}

// persist writes the order and its items in one transaction when the store
// supports it, and otherwise deletes the order row again if the items fail.
func (h *CreatePendingOrderCommandHandler) persist(ctx context.Context, order domain.Order) error {
	if txRepo, ok := h.repo.(ports.TxOrderRepository); ok {
		if err := txRepo.CreateWithLineItems(ctx, order); err != nil {
			return fmt.Errorf("create order with line items: %w", err)
		}
		return nil
	}

	if err := h.repo.Create(ctx, order); err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	if err := h.repo.InsertLineItems(ctx, order.ID, order.Items); err != nil {
		// The caller's context may be what failed; the compensation must still run.
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		if delErr := h.repo.Delete(cleanupCtx, order.ID); delErr != nil {
			h.logger.ErrorContext(ctx, "failed to remove order after line item failure",
				"order_id", order.ID,
				"error", delErr,
				"cause", err,
			)
			return fmt.Errorf("insert line items: %w", errors.Join(err, delErr))
		}
		return fmt.Errorf("insert line items: %w", err)
	}

	return nil
}

func (h *CreatePendingOrderCommandHandler) snapshotItems(ctx context.Context, inputs []LineItemInput) ([]domain.LineItem, error) {
	ids := make([]string, 0, len(inputs))
	for _, in := range inputs {
		ids = append(ids, in.ProductID)
	}

	products, err := h.catalog.Snapshot(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("snapshot products: %w", err)
	}

	var missing []apperr.FieldViolation
	items := make([]domain.LineItem, 0, len(inputs))
	for i, in := range inputs {
		p, ok := products[in.ProductID]
		if !ok {
			missing = append(missing, apperr.FieldViolation{
				Field: fmt.Sprintf("items[%d].productId", i),
				Rule:  "exists",
			})
			continue
		}
		items = append(items, domain.LineItem{
			ProductID:    p.ID,
			ProductName:  p.Name,
			ProductSKU:   p.SKU,
			ProductPrice: p.Price,
			ProductImage: p.ImageURL,
			Quantity:     in.Quantity,
			Color:        in.Color,
			Size:         in.Size,
		})
	}
	if len(missing) > 0 {
		return nil, apperr.Validation("unknown product", missing...)
	}

	return items, nil
}
