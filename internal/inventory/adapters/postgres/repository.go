package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dejobratic/storefront/internal/database"
	"github.com/dejobratic/storefront/internal/inventory/domain"
)

// errRejected aborts a transaction whose conditional update matched no row.
var errRejected = errors.New("stock decrement rejected")

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, sku, name, price, image_url, stock
		FROM products
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Price, &p.ImageURL, &p.Stock); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return products, nil
}

func (r *Repository) Stock(ctx context.Context, productID string) (int, error) {
	var stock int
	err := r.pool.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrProductNotFound
		}
		return 0, fmt.Errorf("select stock: %w", err)
	}
	return stock, nil
}

const decrementQuery = `
	UPDATE products
	SET stock = stock - $2, updated_at = now()
	WHERE id = $1 AND stock >= $2
`

func (r *Repository) DecrementStock(ctx context.Context, productID string, quantity int) (bool, error) {
	tag, err := r.pool.Exec(ctx, decrementQuery, productID, quantity)
	if err != nil {
		return false, fmt.Errorf("update stock: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DecrementForOrder claims the (order, product) adjustment row and takes the
// stock in one transaction; a rejected decrement rolls the claim back.
func (r *Repository) DecrementForOrder(ctx context.Context, orderID, productID string, quantity int) (bool, error) {
	var applied bool
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		claim, err := tx.Exec(ctx, `
			INSERT INTO stock_adjustments (order_id, product_id, quantity)
			VALUES ($1, $2, $3)
			ON CONFLICT (order_id, product_id) DO NOTHING
		`, orderID, productID, quantity)
		if err != nil {
			if database.IsForeignKeyViolation(err) {
				return errRejected
			}
			return fmt.Errorf("insert stock adjustment: %w", err)
		}
		if claim.RowsAffected() == 0 {
			applied = true
			return nil
		}

		tag, err := tx.Exec(ctx, decrementQuery, productID, quantity)
		if err != nil {
			return fmt.Errorf("update stock: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return errRejected
		}
		applied = true
		return nil
	})
	if errors.Is(err, errRejected) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return applied, nil
}
