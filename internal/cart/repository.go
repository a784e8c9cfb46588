package cart

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront-orders/internal/domain"
	"github.com/joao-fontenele/storefront-orders/internal/inventory"
	"github.com/joao-fontenele/storefront-orders/internal/postgres"
)

type Repository struct {
	db postgres.DBTX
}

func NewRepository(db postgres.DBTX) *Repository {
	return &Repository{db: db}
}

// Lines returns the user's cart joined with current product data, oldest first.
func (r *Repository) Lines(ctx context.Context, userID int64) ([]domain.CartLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.product_id, p.name, c.quantity, p.price, p.stock, p.is_enabled, c.added_at
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.added_at, c.product_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}
	defer func() { _ = rows.Close() }()

	lines := []domain.CartLine{}
	for rows.Next() {
		var l domain.CartLine
		if err := rows.Scan(&l.ProductID, &l.ProductName, &l.Quantity, &l.Price, &l.Stock, &l.IsEnabled, &l.AddedAt); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}

	return lines, nil
}

// AddQuantity inserts the line or adds to it in one statement. The write only
// happens while the resulting quantity fits the product's stock; otherwise it
// returns inventory.ErrInsufficientStock.
func (r *Repository) AddQuantity(ctx context.Context, userID, productID int64, quantity int) error {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_items (user_id, product_id, quantity)
		SELECT $1, p.id, $3
		FROM products p
		WHERE p.id = $2 AND p.stock >= $3
		ON CONFLICT (user_id, product_id) DO UPDATE
		SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
		WHERE cart_items.quantity + EXCLUDED.quantity <= (
			SELECT stock FROM products WHERE id = EXCLUDED.product_id
		)
	`, userID, productID, quantity)
	if err != nil {
		return fmt.Errorf("add to cart: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("add to cart: %w", err)
	}

	if rowsAffected == 0 {
		return inventory.ErrInsufficientStock
	}

	return nil
}

// SetQuantity reports false when the line does not exist.
func (r *Repository) SetQuantity(ctx context.Context, userID, productID int64, quantity int) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE cart_items
		SET quantity = $3, updated_at = NOW()
		WHERE user_id = $1 AND product_id = $2
	`, userID, productID, quantity)
	if err != nil {
		return false, fmt.Errorf("update cart quantity: %w", err)
	}
	return affected(result)
}

// Remove reports false when the line does not exist.
func (r *Repository) Remove(ctx context.Context, userID, productID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE user_id = $1 AND product_id = $2
	`, userID, productID)
	if err != nil {
		return false, fmt.Errorf("remove cart item: %w", err)
	}
	return affected(result)
}

// RemoveProducts drops the given products from the user's cart.
func (r *Repository) RemoveProducts(ctx context.Context, userID int64, productIDs []int64) error {
	if len(productIDs) == 0 {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE user_id = $1 AND product_id = ANY($2)
	`, userID, pq.Array(productIDs)); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func affected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
