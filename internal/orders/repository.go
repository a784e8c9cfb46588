package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/joao-fontenele/storefront-orders/internal/addresses"
	"github.com/joao-fontenele/storefront-orders/internal/cart"
	"github.com/joao-fontenele/storefront-orders/internal/domain"
	"github.com/joao-fontenele/storefront-orders/internal/inventory"
	"github.com/joao-fontenele/storefront-orders/internal/postgres"
)

const orderColumns = `
	id, order_number, user_id, shipping_address_id, billing_address_id,
	total_price, discount_amount, shipping_amount, tax_amount, final_price,
	status, payment_status, payment_method, discount_code, notes, created_at, updated_at`

// OrderRepository is the Postgres Store. It writes to the catalog and cart
// tables too, so one transaction covers the whole checkout.
type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	return postgres.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		return fn(&txStore{
			tx:       tx,
			products: inventory.NewProductRepository(tx),
			cart:     cart.NewRepository(tx),
		})
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	o := &domain.Order{}
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.ShippingAddressID, &o.BillingAddressID,
		&o.TotalPrice, &o.DiscountAmount, &o.ShippingAmount, &o.TaxAmount, &o.FinalPrice,
		&o.Status, &o.PaymentStatus, &o.PaymentMethod, &o.DiscountCode, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func loadItems(ctx context.Context, db postgres.DBTX, orderID int64) ([]domain.OrderItem, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT oi.id, oi.product_id, p.name, oi.quantity, oi.unit_price,
		       oi.discount_amount, oi.tax_amount, oi.final_price
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := []domain.OrderItem{}
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.ProductName, &item.Quantity, &item.UnitPrice,
			&item.DiscountAmount, &item.TaxAmount, &item.FinalPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}

	return items, nil
}

// GetOrder loads an order with its items and both addresses. Soft-deleted
// orders come back as nil.
func (r *OrderRepository) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1 AND deleted_at IS NULL
	`, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order %d: %w", orderID, err)
	}

	if o.Items, err = loadItems(ctx, r.db, o.ID); err != nil {
		return nil, err
	}

	addrs := addresses.NewRepository(r.db)
	if o.ShippingAddress, err = addrs.GetForOwner(ctx, o.ShippingAddressID, o.UserID); err != nil {
		return nil, err
	}
	if o.BillingAddress, err = addrs.GetForOwner(ctx, o.BillingAddressID, o.UserID); err != nil {
		return nil, err
	}

	return o, nil
}

func (r *OrderRepository) ListOrders(ctx context.Context, f domain.OrderFilter) ([]domain.OrderSummary, int, error) {
	where := []string{"o.deleted_at IS NULL"}
	var args []any
	if f.UserID != nil {
		args = append(args, *f.UserID)
		where = append(where, fmt.Sprintf("o.user_id = $%d", len(args)))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		where = append(where, fmt.Sprintf("o.status = $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders o WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	args = append(args, f.PageSize, f.Offset())
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT o.id, o.order_number, o.final_price, o.status, o.payment_status, o.created_at,
		       u.id, u.name, u.email
		FROM orders o
		JOIN users u ON u.id = o.user_id
		WHERE %s
		ORDER BY o.created_at DESC, o.id DESC
		LIMIT $%d OFFSET $%d
	`, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	summaries := []domain.OrderSummary{}
	for rows.Next() {
		var s domain.OrderSummary
		var u domain.UserRef
		if err := rows.Scan(&s.ID, &s.OrderNumber, &s.FinalPrice, &s.Status, &s.PaymentStatus, &s.CreatedAt,
			&u.ID, &u.Name, &u.Email); err != nil {
			return nil, 0, fmt.Errorf("scan order summary: %w", err)
		}
		if f.IncludeUser {
			s.User = &u
		}
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}

	return summaries, total, nil
}

func (r *OrderRepository) CustomerEmail(ctx context.Context, userID int64) (string, error) {
	var email string
	err := r.db.QueryRowContext(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("get customer email: %w", err)
	}
	return email, nil
}

type txStore struct {
	tx       *sql.Tx
	products *inventory.ProductRepository
	cart     *cart.Repository
}

func (t *txStore) InsertOrder(ctx context.Context, o *domain.Order) error {
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO orders (
			order_number, user_id, shipping_address_id, billing_address_id,
			total_price, discount_amount, shipping_amount, tax_amount, final_price,
			status, payment_status, payment_method, discount_code, notes
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at
	`, o.OrderNumber, o.UserID, o.ShippingAddressID, o.BillingAddressID,
		o.TotalPrice, o.DiscountAmount, o.ShippingAmount, o.TaxAmount, o.FinalPrice,
		o.Status, o.PaymentStatus, o.PaymentMethod, o.DiscountCode, o.Notes,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range o.Items {
		item := &o.Items[i]
		err := t.tx.QueryRowContext(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, unit_price, discount_amount, tax_amount, final_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, o.ID, item.ProductID, item.Quantity, item.UnitPrice, item.DiscountAmount, item.TaxAmount, item.FinalPrice,
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return nil
}

func (t *txStore) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	return t.products.DecrementStock(ctx, productID, quantity)
}

func (t *txStore) RestockProduct(ctx context.Context, productID int64, quantity int) error {
	p, err := t.products.Restock(ctx, productID, quantity)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("restock product %d: product missing", productID)
	}
	return nil
}

func (t *txStore) RemoveCartItems(ctx context.Context, userID int64, productIDs []int64) error {
	return t.cart.RemoveProducts(ctx, userID, productIDs)
}

func (t *txStore) LockOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	o, err := scanOrder(t.tx.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE
	`, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock order %d: %w", orderID, err)
	}

	if o.Items, err = loadItems(ctx, t.tx, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (t *txStore) UpdateOrderStatus(ctx context.Context, orderID int64, status domain.OrderStatus, payment domain.PaymentStatus) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, payment_status = $3, updated_at = NOW()
		WHERE id = $1
	`, orderID, status, payment)
	if err != nil {
		return fmt.Errorf("update order %d status: %w", orderID, err)
	}
	return nil
}

func (t *txStore) SoftDeleteOrder(ctx context.Context, orderID int64) (bool, error) {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE orders
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`, orderID)
	if err != nil {
		return false, fmt.Errorf("delete order %d: %w", orderID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete order %d: %w", orderID, err)
	}
	return rowsAffected > 0, nil
}
