package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dejobratic/storefront/internal/inventory/domain"
	"github.com/dejobratic/storefront/internal/inventory/ports"
)

// Adjuster decrements stock through conditional updates only; stock is never
// read and written back.
type Adjuster struct {
	repo   ports.ProductRepository
	logger *slog.Logger
}

func NewAdjuster(repo ports.ProductRepository, logger *slog.Logger) *Adjuster {
	return &Adjuster{repo: repo, logger: logger}
}

// DecrementStock removes quantity units of productID. It fails with a
// *domain.StockError when stock is short and domain.ErrProductNotFound when
// the product does not exist.
func (a *Adjuster) DecrementStock(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	ok, err := a.repo.DecrementStock(ctx, productID, quantity)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if ok {
		return nil
	}
	return a.explain(ctx, productID, quantity)
}

// DecrementForOrder is DecrementStock made idempotent per order line, so a
// retried confirmation never takes stock twice.
func (a *Adjuster) DecrementForOrder(ctx context.Context, orderID, productID string, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	ok, err := a.repo.DecrementForOrder(ctx, orderID, productID, quantity)
	if err != nil {
		return fmt.Errorf("decrement stock for order: %w", err)
	}
	if ok {
		return nil
	}

	err = a.explain(ctx, productID, quantity)
	a.logger.WarnContext(ctx, "stock decrement rejected",
		"order_id", orderID,
		"product_id", productID,
		"quantity", quantity,
		"error", err,
	)
	return err
}

// explain turns a rejected conditional update into a precise error.
func (a *Adjuster) explain(ctx context.Context, productID string, quantity int) error {
	available, err := a.repo.Stock(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return domain.ErrProductNotFound
		}
		return fmt.Errorf("read stock: %w", err)
	}
	return &domain.StockError{ProductID: productID, Requested: quantity, Available: available}
}
