package orders

import (
	"cmp"
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/joao-fontenele/storefront-orders/internal/domain"
	"github.com/joao-fontenele/storefront-orders/internal/inventory"
)

type cartKey struct{ user, product int64 }

type memState struct {
	products    map[int64]domain.Product
	orders      map[int64]*domain.Order
	deleted     map[int64]bool
	cart        map[cartKey]int
	nextOrderID int64
	nextItemID  int64
}

func (s memState) clone() memState {
	c := memState{
		products:    maps.Clone(s.products),
		orders:      make(map[int64]*domain.Order, len(s.orders)),
		deleted:     maps.Clone(s.deleted),
		cart:        maps.Clone(s.cart),
		nextOrderID: s.nextOrderID,
		nextItemID:  s.nextItemID,
	}
	for id, o := range s.orders {
		c.orders[id] = copyOrder(o)
	}
	return c
}

func copyOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Items = slices.Clone(o.Items)
	return &c
}

// memStore serializes transactions and restores a snapshot when one fails,
// which gives the all-or-nothing behaviour of the Postgres store.
type memStore struct {
	mu    sync.Mutex
	state memState
	clock func() time.Time
	users map[int64]string

	failCartClear  error
	failNumberOnce bool
	txCount        int
}

func newMemStore(clock func() time.Time) *memStore {
	return &memStore{
		state: memState{
			products: map[int64]domain.Product{},
			orders:   map[int64]*domain.Order{},
			deleted:  map[int64]bool{},
			cart:     map[cartKey]int{},
		},
		clock: clock,
		users: map[int64]string{},
	}
}

func (m *memStore) addProduct(p domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.products[p.ID] = p
}

func (m *memStore) product(id int64) domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.products[id]
}

func (m *memStore) setPrice(id int64, price string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.state.products[id]
	p.Price = dec(price)
	m.state.products[id] = p
}

func (m *memStore) setStock(id int64, stock int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.state.products[id]
	p.Stock = stock
	m.state.products[id] = p
}

func (m *memStore) addToCart(user, product int64, qty int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.cart[cartKey{user, product}] = qty
}

func (m *memStore) cartQty(user, product int64) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.state.cart[cartKey{user, product}]
	return q, ok
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.orders)
}

func (m *memStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.txCount++
	snapshot := m.state.clone()
	if err := fn(&memTx{m: m}); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

func (m *memStore) GetOrder(_ context.Context, orderID int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.state.orders[orderID]
	if !ok || m.state.deleted[orderID] {
		return nil, nil
	}
	return copyOrder(o), nil
}

func (m *memStore) ListOrders(_ context.Context, f domain.OrderFilter) ([]domain.OrderSummary, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*domain.Order
	for id, o := range m.state.orders {
		if m.state.deleted[id] {
			continue
		}
		if f.UserID != nil && o.UserID != *f.UserID {
			continue
		}
		if f.Status != nil && o.Status != *f.Status {
			continue
		}
		matched = append(matched, o)
	}
	slices.SortFunc(matched, func(a, b *domain.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	total := len(matched)
	start := min(f.Offset(), total)
	end := min(start+f.PageSize, total)

	out := make([]domain.OrderSummary, 0, end-start)
	for _, o := range matched[start:end] {
		s := o.Summary()
		if f.IncludeUser {
			s.User = &domain.UserRef{ID: o.UserID, Email: m.users[o.UserID]}
		}
		out = append(out, s)
	}
	return out, total, nil
}

func (m *memStore) CustomerEmail(_ context.Context, userID int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[userID], nil
}

// GetProducts reads committed state, like the pre-transaction read in Postgres.
func (m *memStore) GetProducts(_ context.Context, ids []int64) (map[int64]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[int64]*domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := m.state.products[id]; ok {
			out[id] = &p
		}
	}
	return out, nil
}

type memTx struct {
	m *memStore
}

func (t *memTx) InsertOrder(_ context.Context, o *domain.Order) error {
	s := &t.m.state
	if t.m.failNumberOnce {
		t.m.failNumberOnce = false
		return errDuplicateNumber
	}

	s.nextOrderID++
	o.ID = s.nextOrderID
	o.CreatedAt = t.m.clock()
	o.UpdatedAt = o.CreatedAt
	for i := range o.Items {
		s.nextItemID++
		o.Items[i].ID = s.nextItemID
	}
	s.orders[o.ID] = copyOrder(o)
	return nil
}

func (t *memTx) DecrementStock(_ context.Context, productID int64, quantity int) error {
	p, ok := t.m.state.products[productID]
	if !ok || p.Stock < quantity {
		return inventory.ErrInsufficientStock
	}
	p.Stock -= quantity
	t.m.state.products[productID] = p
	return nil
}

func (t *memTx) RestockProduct(_ context.Context, productID int64, quantity int) error {
	p, ok := t.m.state.products[productID]
	if !ok {
		return errors.New("product missing")
	}
	p.Stock += quantity
	t.m.state.products[productID] = p
	return nil
}

func (t *memTx) RemoveCartItems(_ context.Context, userID int64, productIDs []int64) error {
	if t.m.failCartClear != nil {
		return t.m.failCartClear
	}
	for _, id := range productIDs {
		delete(t.m.state.cart, cartKey{userID, id})
	}
	return nil
}

func (t *memTx) LockOrder(_ context.Context, orderID int64) (*domain.Order, error) {
	o, ok := t.m.state.orders[orderID]
	if !ok || t.m.state.deleted[orderID] {
		return nil, nil
	}
	return copyOrder(o), nil
}

func (t *memTx) UpdateOrderStatus(_ context.Context, orderID int64, status domain.OrderStatus, payment domain.PaymentStatus) error {
	o := t.m.state.orders[orderID]
	o.Status = status
	o.PaymentStatus = payment
	o.UpdatedAt = t.m.clock()
	return nil
}

func (t *memTx) SoftDeleteOrder(_ context.Context, orderID int64) (bool, error) {
	if _, ok := t.m.state.orders[orderID]; !ok || t.m.state.deleted[orderID] {
		return false, nil
	}
	t.m.state.deleted[orderID] = true
	return true, nil
}

type fakeAddresses map[int64]domain.Address

func (f fakeAddresses) GetForOwner(_ context.Context, id, ownerID int64) (*domain.Address, error) {
	a, ok := f[id]
	if !ok || a.OwnerUserID != ownerID {
		return nil, nil
	}
	return &a, nil
}

type fakeDiscounts map[string]domain.Discount

func (f fakeDiscounts) GetActive(_ context.Context, code string, now time.Time) (*domain.Discount, error) {
	d, ok := f[code]
	if !ok || !d.ActiveAt(now) {
		return nil, nil
	}
	return &d, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.OrderEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, _ string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event.(domain.OrderEvent))
	return nil
}

func (p *fakePublisher) published() []domain.OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.events)
}
