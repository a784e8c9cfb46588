package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront-orders/internal/domain"
	"github.com/joao-fontenele/storefront-orders/internal/postgres"
)

var ErrInsufficientStock = errors.New("insufficient stock")

const productColumns = `id, name, sku, price, stock, low_stock_threshold, is_enabled, updated_at`

type ProductRepository struct {
	db postgres.DBTX
}

func NewProductRepository(db postgres.DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	p := &domain.Product{}
	if err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.Price, &p.Stock, &p.LowStockThreshold, &p.IsEnabled, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ProductRepository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	return products, nil
}

func (r *ProductRepository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

// GetProducts loads the given products keyed by id. Missing ids are absent
// from the map.
func (r *ProductRepository) GetProducts(ctx context.Context, ids []int64) (map[int64]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	products := make(map[int64]*domain.Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products[p.ID] = p
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}

	return products, nil
}

// DecrementStock removes quantity units in a single conditional statement.
// ErrInsufficientStock means the row was missing or did not hold enough stock.
func (r *ProductRepository) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2
	`, productID, quantity)
	if err != nil {
		if postgres.IsCheckViolation(err) {
			return ErrInsufficientStock
		}
		return fmt.Errorf("decrement stock for product %d: %w", productID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement stock for product %d: %w", productID, err)
	}

	if rowsAffected == 0 {
		return ErrInsufficientStock
	}

	return nil
}

// Restock adds quantity units and returns the updated product, or nil when it
// does not exist.
func (r *ProductRepository) Restock(ctx context.Context, productID int64, quantity int) (*domain.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+productColumns,
		productID, quantity))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("restock product %d: %w", productID, err)
	}
	return p, nil
}

func (r *ProductRepository) SetPrice(ctx context.Context, productID int64, price decimal.Decimal) (*domain.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, `
		UPDATE products
		SET price = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+productColumns,
		productID, price))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("set price for product %d: %w", productID, err)
	}
	return p, nil
}
