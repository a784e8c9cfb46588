package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CartItem struct {
	UserID    int64     `json:"user_id"`
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

// CartLine is a cart row joined with the current catalog data.
type CartLine struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	IsEnabled   bool            `json:"-"`
	AddedAt     time.Time       `json:"added_at"`
}

// Available is false when the product was disabled or stock dropped below the cart quantity.
func (l CartLine) Available() bool {
	return l.IsEnabled && l.Stock >= l.Quantity
}
