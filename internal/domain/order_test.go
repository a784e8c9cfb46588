package domain

import (
	"regexp"
	"testing"
	"time"
)

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{OrderStatusPending, OrderStatusProcessing, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusShipped, false},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusProcessing, OrderStatusCancelled, true},
		{OrderStatusProcessing, OrderStatusPending, false},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusCancelled, false},
		{OrderStatusDelivered, OrderStatusRefunded, true},
		{OrderStatusDelivered, OrderStatusShipped, false},
		{OrderStatusCancelled, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusRefunded, true},
		{OrderStatusRefunded, OrderStatusPending, false},
		{OrderStatusRefunded, OrderStatusRefunded, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestOrderStatus_Cancellable(t *testing.T) {
	for _, st := range orderStatuses {
		want := st == OrderStatusPending || st == OrderStatusProcessing
		if got := st.Cancellable(); got != want {
			t.Errorf("%s: expected cancellable=%v, got %v", st, want, got)
		}
	}
}

func TestParseOrderStatus(t *testing.T) {
	if st, ok := ParseOrderStatus("Shipped"); !ok || st != OrderStatusShipped {
		t.Fatalf("expected Shipped, got %q ok=%v", st, ok)
	}
	if _, ok := ParseOrderStatus("shipped"); ok {
		t.Fatal("expected lowercase status to be rejected")
	}
	if _, ok := ParseOrderStatus("Lost"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
}

func TestParsePaymentMethod(t *testing.T) {
	if m, ok := ParsePaymentMethod(""); !ok || m != PaymentMethodCOD {
		t.Fatalf("expected empty method to default to COD, got %q", m)
	}
	if m, ok := ParsePaymentMethod("credit card"); !ok || m != PaymentMethodCreditCard {
		t.Fatalf("expected Credit Card, got %q", m)
	}
	if _, ok := ParsePaymentMethod("bitcoin"); ok {
		t.Fatal("expected unknown method to be rejected")
	}
}

func TestNewOrderNumber(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	pattern := regexp.MustCompile(`^ORD-1700000000123-[0-9a-f]{8}$`)

	a := NewOrderNumber(now)
	b := NewOrderNumber(now)
	if !pattern.MatchString(a) {
		t.Fatalf("unexpected order number format: %s", a)
	}
	if a == b {
		t.Fatalf("expected distinct order numbers for the same instant, got %s twice", a)
	}
}

func TestOrderFilter_Normalize(t *testing.T) {
	f := OrderFilter{Page: 0, PageSize: 500}.Normalize()
	if f.Page != 1 || f.PageSize != MaxPageSize {
		t.Fatalf("expected page 1 size %d, got page %d size %d", MaxPageSize, f.Page, f.PageSize)
	}
	if f.Offset() != 0 {
		t.Fatalf("expected offset 0, got %d", f.Offset())
	}

	f = OrderFilter{Page: 3, PageSize: 0}.Normalize()
	if f.PageSize != DefaultPageSize || f.Offset() != 2*DefaultPageSize {
		t.Fatalf("unexpected normalized filter: %+v", f)
	}
}

func TestNewOrderPage(t *testing.T) {
	page := NewOrderPage(nil, 21, OrderFilter{Page: 2, PageSize: 10})
	if page.TotalPages != 3 {
		t.Errorf("expected 3 pages, got %d", page.TotalPages)
	}
	if page.CurrentPage != 2 {
		t.Errorf("expected current page 2, got %d", page.CurrentPage)
	}
	if page.Orders == nil {
		t.Error("expected empty slice, got nil")
	}
}
