package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	SKU               string          `json:"sku"`
	Price             decimal.Decimal `json:"price"`
	Stock             int             `json:"stock"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	IsEnabled         bool            `json:"is_enabled"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (p *Product) LowStock() bool {
	return p.Stock <= p.LowStockThreshold
}

// Orderable is false for disabled products.
func (p *Product) Orderable() bool {
	return p.IsEnabled
}

type Address struct {
	ID          int64  `json:"id"`
	OwnerUserID int64  `json:"user_id"`
	AddressType string `json:"address_type"`
	Line1       string `json:"address_line1"`
	Line2       string `json:"address_line2,omitempty"`
	Landmark    string `json:"landmark,omitempty"`
	City        string `json:"city"`
	State       string `json:"state"`
	PinCode     string `json:"pin_code"`
	IsDefault   bool   `json:"is_default"`
}

type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

type Discount struct {
	ID       int64           `json:"id"`
	Code     string          `json:"code"`
	Type     DiscountType    `json:"discount_type"`
	Value    decimal.Decimal `json:"discount_value"`
	StartsAt time.Time       `json:"start_date"`
	EndsAt   time.Time       `json:"end_date"`
	IsActive bool            `json:"is_active"`
}

// ActiveAt reports whether the discount can be applied at t.
func (d *Discount) ActiveAt(t time.Time) bool {
	if !d.IsActive {
		return false
	}
	if !d.StartsAt.IsZero() && t.Before(d.StartsAt) {
		return false
	}
	if !d.EndsAt.IsZero() && t.After(d.EndsAt) {
		return false
	}
	return true
}
