// Package orders implements checkout and the order lifecycle.
package orders

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/storefront-orders/internal/apperr"
	"github.com/joao-fontenele/storefront-orders/internal/auth"
	"github.com/joao-fontenele/storefront-orders/internal/domain"
	"github.com/joao-fontenele/storefront-orders/internal/inventory"
	"github.com/joao-fontenele/storefront-orders/internal/postgres"
	"github.com/joao-fontenele/storefront-orders/internal/pricing"
)

var tracer = otel.Tracer("orders/service")

// Tx is the unit of work for one order mutation. Everything done through a Tx
// commits or rolls back together.
type Tx interface {
	InsertOrder(ctx context.Context, o *domain.Order) error
	DecrementStock(ctx context.Context, productID int64, quantity int) error
	RestockProduct(ctx context.Context, productID int64, quantity int) error
	RemoveCartItems(ctx context.Context, userID int64, productIDs []int64) error
	// LockOrder loads the order with its items and holds a row lock until
	// the transaction ends. Soft-deleted orders are reported as nil.
	LockOrder(ctx context.Context, orderID int64) (*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status domain.OrderStatus, payment domain.PaymentStatus) error
	SoftDeleteOrder(ctx context.Context, orderID int64) (bool, error)
}

type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	GetOrder(ctx context.Context, orderID int64) (*domain.Order, error)
	ListOrders(ctx context.Context, f domain.OrderFilter) ([]domain.OrderSummary, int, error)
	CustomerEmail(ctx context.Context, userID int64) (string, error)
}

type ProductReader interface {
	GetProducts(ctx context.Context, ids []int64) (map[int64]*domain.Product, error)
}

type AddressReader interface {
	GetForOwner(ctx context.Context, id, ownerID int64) (*domain.Address, error)
}

type DiscountReader interface {
	GetActive(ctx context.Context, code string, now time.Time) (*domain.Discount, error)
}

type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Service struct {
	store     Store
	products  ProductReader
	addresses AddressReader
	engine    *pricing.Engine
	logger    *slog.Logger

	discounts DiscountReader
	publisher Publisher
	metrics   *Metrics
	now       func() time.Time
}

type Option func(*Service)

func WithDiscounts(d DiscountReader) Option {
	return func(s *Service) { s.discounts = d }
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, products ProductReader, addresses AddressReader, engine *pricing.Engine, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		products:  products,
		addresses: addresses,
		engine:    engine,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type LineInput struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type CreateOrderInput struct {
	ShippingAddressID int64       `json:"shipping_address_id"`
	BillingAddressID  int64       `json:"billing_address_id"`
	CartItems         []LineInput `json:"cart_items"`
	PaymentMethod     string      `json:"payment_method"`
	Notes             string      `json:"notes"`
	DiscountCode      string      `json:"discount_code"`
}

const maxOrderNumberAttempts = 3

// CreateOrder converts the submitted lines into an order. Stock is decremented
// and the ordered products leave the cart in the same transaction as the
// order insert.
func (s *Service) CreateOrder(ctx context.Context, customer auth.Identity, in CreateOrderInput) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "CreateOrder", trace.WithAttributes(attribute.Int64("user.id", customer.UserID)))
	defer span.End()

	order, err := s.createOrder(ctx, customer, in)
	if err != nil {
		if apperr.Is(err, "insufficient_stock") {
			s.metrics.StockConflict(ctx)
		}
		s.metrics.OrderFailed(ctx, apperr.As(err).Code)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int64("order.id", order.ID))
	s.metrics.OrderCreated(ctx, order.FinalPrice)
	s.publish(ctx, domain.EventOrderCreated, order, customer.Email, "")

	s.logger.Info("order created", "order_id", order.ID, "order_number", order.OrderNumber,
		"user_id", customer.UserID, "final_price", order.FinalPrice.String())
	return order, nil
}

func (s *Service) createOrder(ctx context.Context, customer auth.Identity, in CreateOrderInput) (*domain.Order, error) {
	lines, err := mergeLines(in.CartItems)
	if err != nil {
		return nil, err
	}

	method, ok := domain.ParsePaymentMethod(in.PaymentMethod)
	if !ok {
		return nil, apperr.InvalidValue("invalid payment method %q", in.PaymentMethod)
	}
	if in.ShippingAddressID < 1 || in.BillingAddressID < 1 {
		return nil, apperr.Validation("shipping_address_id and billing_address_id are required")
	}

	shipping, err := s.ownedAddress(ctx, in.ShippingAddressID, customer.UserID, "shipping")
	if err != nil {
		return nil, err
	}
	billing, err := s.ownedAddress(ctx, in.BillingAddressID, customer.UserID, "billing")
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	products, err := s.products.GetProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	priceLines := make([]pricing.Line, len(lines))
	for i, l := range lines {
		p, ok := products[l.ProductID]
		if !ok || !p.Orderable() {
			return nil, apperr.ProductNotFound(l.ProductID)
		}
		if p.Stock < l.Quantity {
			return nil, apperr.InsufficientStock(l.ProductID)
		}
		priceLines[i] = pricing.Line{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: p.Price}
	}

	coupon, err := s.resolveCoupon(ctx, in.DiscountCode)
	if err != nil {
		return nil, err
	}

	quote, err := s.engine.Price(priceLines, coupon)
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		UserID:            customer.UserID,
		ShippingAddressID: shipping.ID,
		BillingAddressID:  billing.ID,
		ShippingAddress:   shipping,
		BillingAddress:    billing,
		Items:             make([]domain.OrderItem, len(quote.Lines)),
		TotalPrice:        quote.Totals.Subtotal,
		DiscountAmount:    quote.Totals.Discount,
		ShippingAmount:    quote.Totals.Shipping,
		TaxAmount:         quote.Totals.Tax,
		FinalPrice:        quote.Totals.Final,
		Status:            domain.OrderStatusPending,
		PaymentStatus:     domain.PaymentStatusPending,
		PaymentMethod:     method,
		Notes:             in.Notes,
	}
	if coupon != nil {
		order.DiscountCode = coupon.Code
	}
	for i, pl := range quote.Lines {
		order.Items[i] = domain.OrderItem{
			ProductID:      pl.ProductID,
			ProductName:    products[pl.ProductID].Name,
			Quantity:       pl.Quantity,
			UnitPrice:      pl.UnitPrice,
			DiscountAmount: pl.DiscountAmount,
			TaxAmount:      pl.TaxAmount,
			FinalPrice:     pl.FinalPrice,
		}
	}

	// ascending product id keeps row locks ordered across concurrent orders
	lockOrder := slices.Clone(ids)
	slices.Sort(lockOrder)
	qty := make(map[int64]int, len(lines))
	for _, l := range lines {
		qty[l.ProductID] = l.Quantity
	}

	for attempt := 1; ; attempt++ {
		order.OrderNumber = domain.NewOrderNumber(s.now())

		err = s.store.WithinTx(ctx, func(tx Tx) error {
			if err := tx.InsertOrder(ctx, order); err != nil {
				return err
			}
			for _, id := range lockOrder {
				if err := tx.DecrementStock(ctx, id, qty[id]); err != nil {
					if errors.Is(err, inventory.ErrInsufficientStock) {
						return apperr.InsufficientStock(id)
					}
					return err
				}
			}
			return tx.RemoveCartItems(ctx, customer.UserID, ids)
		})
		if err == nil {
			return order, nil
		}
		if !postgres.IsUniqueViolation(err) || attempt == maxOrderNumberAttempts {
			return nil, err
		}
		s.logger.Warn("order number collision, retrying", "order_number", order.OrderNumber, "attempt", attempt)
	}
}

// mergeLines validates quantities and folds repeated products into one line,
// keeping the order in which products first appear.
func mergeLines(in []LineInput) ([]LineInput, error) {
	if len(in) == 0 {
		return nil, apperr.Validation("cart is empty")
	}

	index := make(map[int64]int, len(in))
	out := make([]LineInput, 0, len(in))
	for _, l := range in {
		if l.ProductID < 1 {
			return nil, apperr.Validation("product_id is required for every cart item")
		}
		if l.Quantity < 1 {
			return nil, apperr.Validation("quantity for product %d must be at least 1", l.ProductID)
		}
		if i, ok := index[l.ProductID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out, nil
}

func (s *Service) ownedAddress(ctx context.Context, id, userID int64, kind string) (*domain.Address, error) {
	a, err := s.addresses.GetForOwner(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apperr.NotFound("%s address not found", kind)
	}
	return a, nil
}

func (s *Service) resolveCoupon(ctx context.Context, code string) (*pricing.Coupon, error) {
	if code == "" {
		return nil, nil
	}
	if s.discounts == nil {
		return nil, apperr.Validation("invalid or expired discount code")
	}

	d, err := s.discounts.GetActive(ctx, code, s.now())
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, apperr.Validation("invalid or expired discount code")
	}
	return pricing.CouponFromDiscount(d), nil
}

// GetOrderDetails returns the order only to its owner.
func (s *Service) GetOrderDetails(ctx context.Context, orderID, userID int64) (*domain.Order, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil || o.UserID != userID {
		return nil, apperr.NotFound("order not found")
	}
	return o, nil
}

// CancelOrder cancels a Pending or Processing order owned by userID and puts
// its items back into stock.
func (s *Service) CancelOrder(ctx context.Context, orderID, userID int64) (*domain.Order, error) {
	var order *domain.Order
	var previous domain.OrderStatus

	err := s.store.WithinTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil || o.UserID != userID {
			return apperr.NotFound("order not found")
		}
		if !o.Status.Cancellable() {
			return apperr.InvalidStateTransition(
				"order cannot be cancelled in status %s; only Pending or Processing orders can be cancelled", o.Status)
		}

		if err := tx.UpdateOrderStatus(ctx, o.ID, domain.OrderStatusCancelled, o.PaymentStatus); err != nil {
			return err
		}

		items := slices.Clone(o.Items)
		slices.SortFunc(items, func(a, b domain.OrderItem) int {
			return cmp.Compare(a.ProductID, b.ProductID)
		})
		for _, item := range items {
			if err := tx.RestockProduct(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		previous = o.Status
		o.Status = domain.OrderStatusCancelled
		o.UpdatedAt = s.now().UTC()
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order cancelled", "order_id", order.ID, "user_id", userID, "previous_status", previous)
	s.publish(ctx, domain.EventOrderStatusChanged, order, "", previous)
	return order, nil
}

type UpdateStatusInput struct {
	Status        *string `json:"status"`
	PaymentStatus *string `json:"payment_status"`
}

// UpdateOrderStatus is the admin path. The status must follow the state
// machine; the payment status may move freely within its enum. Stock is not
// touched here.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID int64, in UpdateStatusInput) (*domain.Order, error) {
	if in.Status == nil && in.PaymentStatus == nil {
		return nil, apperr.Validation("status or payment_status is required")
	}

	var status *domain.OrderStatus
	if in.Status != nil {
		st, ok := domain.ParseOrderStatus(*in.Status)
		if !ok {
			return nil, apperr.InvalidValue("invalid status %q", *in.Status)
		}
		status = &st
	}
	var payment *domain.PaymentStatus
	if in.PaymentStatus != nil {
		ps, ok := domain.ParsePaymentStatus(*in.PaymentStatus)
		if !ok {
			return nil, apperr.InvalidValue("invalid payment status %q", *in.PaymentStatus)
		}
		payment = &ps
	}

	var order *domain.Order
	var previous domain.OrderStatus

	err := s.store.WithinTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return apperr.NotFound("order not found")
		}

		previous = o.Status
		next := o.Status
		if status != nil && *status != o.Status {
			if !o.Status.CanTransitionTo(*status) {
				return apperr.InvalidStateTransition("cannot move order from %s to %s", o.Status, *status)
			}
			next = *status
		}
		nextPayment := o.PaymentStatus
		if payment != nil {
			nextPayment = *payment
		}

		if next == o.Status && nextPayment == o.PaymentStatus {
			order = o
			return nil
		}

		if err := tx.UpdateOrderStatus(ctx, o.ID, next, nextPayment); err != nil {
			return err
		}
		o.Status = next
		o.PaymentStatus = nextPayment
		o.UpdatedAt = s.now().UTC()
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	if order.Status != previous {
		s.logger.Info("order status updated", "order_id", order.ID, "from", previous, "to", order.Status)
		s.publish(ctx, domain.EventOrderStatusChanged, order, "", previous)
	}
	return order, nil
}

// ListOrders pages through orders newest first. Set f.UserID to scope to one
// customer.
func (s *Service) ListOrders(ctx context.Context, f domain.OrderFilter) (domain.OrderPage, error) {
	f = f.Normalize()
	if f.Status != nil && !f.Status.Valid() {
		return domain.OrderPage{}, apperr.InvalidValue("invalid status %q", *f.Status)
	}

	summaries, total, err := s.store.ListOrders(ctx, f)
	if err != nil {
		return domain.OrderPage{}, err
	}
	return domain.NewOrderPage(summaries, total, f), nil
}

// DeleteOrder soft-deletes an order; it disappears from every read path.
func (s *Service) DeleteOrder(ctx context.Context, orderID int64) error {
	return s.store.WithinTx(ctx, func(tx Tx) error {
		deleted, err := tx.SoftDeleteOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !deleted {
			return apperr.NotFound("order not found")
		}
		s.logger.Info("order deleted", "order_id", orderID)
		return nil
	})
}

// publish is best effort: the order is already committed.
func (s *Service) publish(ctx context.Context, t domain.OrderEventType, o *domain.Order, email string, previous domain.OrderStatus) {
	if s.publisher == nil {
		return
	}

	if email == "" {
		var err error
		email, err = s.store.CustomerEmail(ctx, o.UserID)
		if err != nil {
			s.logger.Warn("failed to load customer email", "error", err, "user_id", o.UserID)
		}
	}

	event := domain.NewOrderEvent(t, o, email, s.now().UTC())
	event.PreviousStatus = previous
	if err := s.publisher.Publish(ctx, strconv.FormatInt(o.ID, 10), event); err != nil {
		s.logger.Error("failed to publish order event", "error", err, "order_id", o.ID, "type", t)
	}
}
