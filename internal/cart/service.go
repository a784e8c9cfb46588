// Package cart keeps each user's cart consistent with the catalog.
package cart

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront-orders/internal/apperr"
	"github.com/joao-fontenele/storefront-orders/internal/domain"
	"github.com/joao-fontenele/storefront-orders/internal/inventory"
	"github.com/joao-fontenele/storefront-orders/internal/pricing"
)

type Store interface {
	Lines(ctx context.Context, userID int64) ([]domain.CartLine, error)
	AddQuantity(ctx context.Context, userID, productID int64, quantity int) error
	SetQuantity(ctx context.Context, userID, productID int64, quantity int) (bool, error)
	Remove(ctx context.Context, userID, productID int64) (bool, error)
}

type ProductReader interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
}

type Service struct {
	store    Store
	products ProductReader
	engine   *pricing.Engine
}

func NewService(store Store, products ProductReader, engine *pricing.Engine) *Service {
	return &Service{store: store, products: products, engine: engine}
}

type Line struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	IsAvailable bool            `json:"is_available"`
	AddedAt     time.Time       `json:"added_at"`
}

// Cart is the user's cart with a priced preview of the lines that can be
// ordered right now. Totals is nil when no line is available.
type Cart struct {
	Items  []Line          `json:"items"`
	Totals *pricing.Totals `json:"totals"`
}

func (s *Service) GetCart(ctx context.Context, userID int64) (*Cart, error) {
	lines, err := s.store.Lines(ctx, userID)
	if err != nil {
		return nil, err
	}

	c := &Cart{Items: make([]Line, 0, len(lines))}
	var priced []pricing.Line
	for _, l := range lines {
		available := l.Available()
		c.Items = append(c.Items, Line{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Quantity:    l.Quantity,
			Price:       l.Price,
			Stock:       l.Stock,
			IsAvailable: available,
			AddedAt:     l.AddedAt,
		})
		if available {
			priced = append(priced, pricing.Line{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.Price})
		}
	}

	if len(priced) > 0 {
		q, err := s.engine.Price(priced, nil)
		if err != nil {
			return nil, err
		}
		c.Totals = &q.Totals
	}

	return c, nil
}

func (s *Service) orderableProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	p, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p == nil || !p.Orderable() {
		return nil, apperr.ProductNotFound(productID)
	}
	return p, nil
}

// AddToCart adds quantity to the line, creating it when missing. The merged
// quantity never exceeds the product's stock.
func (s *Service) AddToCart(ctx context.Context, userID, productID int64, quantity int) error {
	if quantity < 1 {
		return apperr.Validation("quantity must be at least 1")
	}

	p, err := s.orderableProduct(ctx, productID)
	if err != nil {
		return err
	}
	if p.Stock < quantity {
		return apperr.InsufficientStock(productID)
	}

	if err := s.store.AddQuantity(ctx, userID, productID, quantity); err != nil {
		if errors.Is(err, inventory.ErrInsufficientStock) {
			return apperr.InsufficientStock(productID)
		}
		return err
	}
	return nil
}

func (s *Service) UpdateQuantity(ctx context.Context, userID, productID int64, quantity int) error {
	if quantity < 1 {
		return apperr.Validation("quantity must be at least 1")
	}

	p, err := s.orderableProduct(ctx, productID)
	if err != nil {
		return err
	}
	if p.Stock < quantity {
		return apperr.InsufficientStock(productID)
	}

	found, err := s.store.SetQuantity(ctx, userID, productID, quantity)
	if err != nil {
		return err
	}
	if !found {
		return apperr.NotFound("cart item not found")
	}
	return nil
}

func (s *Service) RemoveFromCart(ctx context.Context, userID, productID int64) error {
	found, err := s.store.Remove(ctx, userID, productID)
	if err != nil {
		return err
	}
	if !found {
		return apperr.NotFound("cart item not found")
	}
	return nil
}
