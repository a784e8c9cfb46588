// Package pricing computes line-level and order-level amounts for an order.
//
// Intermediate amounts are kept as exact decimals. Only the order's final
// total is rounded, once, to two places (half away from zero), so that line
// rounding never compounds into the total.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront-orders/internal/apperr"
	"github.com/joao-fontenele/storefront-orders/internal/domain"
)

var (
	DefaultTaxRate     = decimal.RequireFromString("0.07")
	DefaultShippingFee = decimal.RequireFromString("5.99")

	hundred = decimal.NewFromInt(100)
)

const (
	totalPlaces = 2
	sharePlaces = 4
)

type Line struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
}

type PricedLine struct {
	ProductID      int64
	Quantity       int
	UnitPrice      decimal.Decimal
	ItemTotal      decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
	FinalPrice     decimal.Decimal
}

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Discount decimal.Decimal `json:"discount"`
	Final    decimal.Decimal `json:"final"`
}

type Quote struct {
	Lines  []PricedLine `json:"-"`
	Totals Totals       `json:"totals"`
}

// Coupon is a resolved discount applied flat to the whole order.
type Coupon struct {
	Code  string
	Type  domain.DiscountType
	Value decimal.Decimal
}

func CouponFromDiscount(d *domain.Discount) *Coupon {
	if d == nil {
		return nil
	}
	return &Coupon{Code: d.Code, Type: d.Type, Value: d.Value}
}

type Engine struct {
	taxRate     decimal.Decimal
	shippingFee decimal.Decimal
}

func NewEngine(taxRate, shippingFee decimal.Decimal) (*Engine, error) {
	if taxRate.IsNegative() {
		return nil, apperr.Validation("tax rate must not be negative")
	}
	if shippingFee.IsNegative() {
		return nil, apperr.Validation("shipping fee must not be negative")
	}
	return &Engine{taxRate: taxRate, shippingFee: shippingFee}, nil
}

// Price prices every line and folds them into order totals. The result only
// depends on its arguments.
func (e *Engine) Price(lines []Line, coupon *Coupon) (Quote, error) {
	if len(lines) == 0 {
		return Quote{}, apperr.Validation("at least one line is required")
	}
	if err := validateCoupon(coupon); err != nil {
		return Quote{}, err
	}

	priced := make([]PricedLine, len(lines))
	subtotal := decimal.Zero
	tax := decimal.Zero
	for i, l := range lines {
		if l.Quantity < 1 {
			return Quote{}, apperr.Validation("quantity for product %d must be at least 1", l.ProductID)
		}
		if l.UnitPrice.IsNegative() {
			return Quote{}, apperr.Validation("price for product %d must not be negative", l.ProductID)
		}

		itemTotal := l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
		itemTax := itemTotal.Mul(e.taxRate)

		priced[i] = PricedLine{
			ProductID:      l.ProductID,
			Quantity:       l.Quantity,
			UnitPrice:      l.UnitPrice,
			ItemTotal:      itemTotal,
			TaxAmount:      itemTax,
			DiscountAmount: decimal.Zero,
		}
		subtotal = subtotal.Add(itemTotal)
		tax = tax.Add(itemTax)
	}

	applyCoupon(priced, subtotal, coupon)

	discount := decimal.Zero
	for i := range priced {
		p := &priced[i]
		p.FinalPrice = p.ItemTotal.Add(p.TaxAmount).Sub(p.DiscountAmount)
		discount = discount.Add(p.DiscountAmount)
	}

	final := subtotal.Add(tax).Add(e.shippingFee).Sub(discount)
	if final.IsNegative() {
		final = decimal.Zero
	}

	return Quote{
		Lines: priced,
		Totals: Totals{
			Subtotal: subtotal,
			Tax:      tax,
			Shipping: e.shippingFee,
			Discount: discount,
			Final:    final.Round(totalPlaces),
		},
	}, nil
}

func validateCoupon(c *Coupon) error {
	if c == nil {
		return nil
	}
	switch c.Type {
	case domain.DiscountTypePercentage:
		if !c.Value.IsPositive() || c.Value.GreaterThan(hundred) {
			return apperr.Validation("percentage discount must be between 0 and 100")
		}
	case domain.DiscountTypeFixed:
		if !c.Value.IsPositive() {
			return apperr.Validation("fixed discount must be positive")
		}
	default:
		return apperr.Validation("unsupported discount type %q", c.Type)
	}
	return nil
}

// applyCoupon fills DiscountAmount on every line. A fixed amount is capped at
// the subtotal and spread in proportion to line totals; the last priced line
// takes the remainder so the shares add up exactly.
func applyCoupon(lines []PricedLine, subtotal decimal.Decimal, c *Coupon) {
	if c == nil || !subtotal.IsPositive() {
		return
	}

	switch c.Type {
	case domain.DiscountTypePercentage:
		for i := range lines {
			lines[i].DiscountAmount = lines[i].ItemTotal.Mul(c.Value).Div(hundred)
		}

	case domain.DiscountTypeFixed:
		applied := decimal.Min(c.Value, subtotal)
		last := len(lines) - 1
		for last > 0 && !lines[last].ItemTotal.IsPositive() {
			last--
		}

		allocated := decimal.Zero
		for i := range lines {
			if i == last {
				continue
			}
			share := applied.Mul(lines[i].ItemTotal).Div(subtotal).Round(sharePlaces)
			lines[i].DiscountAmount = share
			allocated = allocated.Add(share)
		}
		lines[last].DiscountAmount = applied.Sub(allocated)
	}
}
