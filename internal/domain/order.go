package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "Pending"
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusShipped    OrderStatus = "Shipped"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusCancelled  OrderStatus = "Cancelled"
	OrderStatusRefunded   OrderStatus = "Refunded"
)

var orderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusRefunded,
}

var orderTransitions = map[OrderStatus]map[OrderStatus]bool{
	OrderStatusPending:    {OrderStatusProcessing: true, OrderStatusCancelled: true, OrderStatusRefunded: true},
	OrderStatusProcessing: {OrderStatusShipped: true, OrderStatusCancelled: true, OrderStatusRefunded: true},
	OrderStatusShipped:    {OrderStatusDelivered: true, OrderStatusRefunded: true},
	OrderStatusDelivered:  {OrderStatusRefunded: true},
	OrderStatusCancelled:  {OrderStatusRefunded: true},
	OrderStatusRefunded:   {},
}

// ParseOrderStatus matches the exact enum spelling stored in the database.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	for _, st := range orderStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// CanTransitionTo reports whether the state machine allows moving from s to next.
// Refunded is reachable from every other state; it is an admin-only edge.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return orderTransitions[s][next]
}

// Cancellable is true for the states a customer may cancel from.
func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusPending || s == OrderStatusProcessing
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "Pending"
	PaymentStatusPaid     PaymentStatus = "Paid"
	PaymentStatusFailed   PaymentStatus = "Failed"
	PaymentStatusRefunded PaymentStatus = "Refunded"
)

func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	switch PaymentStatus(s) {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return PaymentStatus(s), true
	}
	return "", false
}

type PaymentMethod string

const (
	PaymentMethodCreditCard PaymentMethod = "Credit Card"
	PaymentMethodDebitCard  PaymentMethod = "Debit Card"
	PaymentMethodPayPal     PaymentMethod = "PayPal"
	PaymentMethodCOD        PaymentMethod = "COD"
	PaymentMethodUPI        PaymentMethod = "UPI"
	PaymentMethodNetBanking PaymentMethod = "Net Banking"
)

// ParsePaymentMethod is case-insensitive; an empty value means cash on delivery.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return PaymentMethodCOD, true
	}
	for _, m := range []PaymentMethod{
		PaymentMethodCreditCard, PaymentMethodDebitCard, PaymentMethodPayPal,
		PaymentMethodCOD, PaymentMethodUPI, PaymentMethodNetBanking,
	} {
		if strings.EqualFold(string(m), s) {
			return m, true
		}
	}
	return "", false
}

type OrderItem struct {
	ID             int64           `json:"id"`
	ProductID      int64           `json:"product_id"`
	ProductName    string          `json:"product_name,omitempty"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	FinalPrice     decimal.Decimal `json:"final_price"`
}

type Order struct {
	ID                int64           `json:"id"`
	OrderNumber       string          `json:"order_number"`
	UserID            int64           `json:"user_id"`
	ShippingAddressID int64           `json:"shipping_address_id"`
	BillingAddressID  int64           `json:"billing_address_id"`
	ShippingAddress   *Address        `json:"shipping_address,omitempty"`
	BillingAddress    *Address        `json:"billing_address,omitempty"`
	Items             []OrderItem     `json:"items"`
	TotalPrice        decimal.Decimal `json:"total_price"`
	DiscountAmount    decimal.Decimal `json:"discount_amount"`
	ShippingAmount    decimal.Decimal `json:"shipping_amount"`
	TaxAmount         decimal.Decimal `json:"tax_amount"`
	FinalPrice        decimal.Decimal `json:"final_price"`
	Status            OrderStatus     `json:"status"`
	PaymentStatus     PaymentStatus   `json:"payment_status"`
	PaymentMethod     PaymentMethod   `json:"payment_method"`
	DiscountCode      string          `json:"discount_code,omitempty"`
	Notes             string          `json:"notes,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Summary is the list-view projection of the order.
func (o *Order) Summary() OrderSummary {
	return OrderSummary{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		FinalPrice:    o.FinalPrice,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		CreatedAt:     o.CreatedAt,
	}
}

type OrderSummary struct {
	ID            int64           `json:"id"`
	OrderNumber   string          `json:"order_number"`
	FinalPrice    decimal.Decimal `json:"final_price"`
	Status        OrderStatus     `json:"status"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	CreatedAt     time.Time       `json:"created_at"`
	User          *UserRef        `json:"user,omitempty"`
}

type UserRef struct {
	ID    int64  `json:"id"`
	Name  string `json:"user_name"`
	Email string `json:"user_email"`
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type OrderFilter struct {
	UserID      *int64
	Status      *OrderStatus
	Page        int
	PageSize    int
	IncludeUser bool
}

// Normalize clamps paging to sane bounds.
func (f OrderFilter) Normalize() OrderFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	return f
}

func (f OrderFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

type OrderPage struct {
	Orders      []OrderSummary `json:"orders"`
	TotalOrders int            `json:"totalOrders"`
	TotalPages  int            `json:"totalPages"`
	CurrentPage int            `json:"currentPage"`
}

func NewOrderPage(orders []OrderSummary, total int, f OrderFilter) OrderPage {
	pages := 0
	if f.PageSize > 0 {
		pages = (total + f.PageSize - 1) / f.PageSize
	}
	if orders == nil {
		orders = []OrderSummary{}
	}
	return OrderPage{
		Orders:      orders,
		TotalOrders: total,
		TotalPages:  pages,
		CurrentPage: f.Page,
	}
}

// NewOrderNumber builds ORD-<unix millis>-<8 hex chars>.
func NewOrderNumber(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), suffix)
}
