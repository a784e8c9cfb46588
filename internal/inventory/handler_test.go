package inventory

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront-orders/internal/auth"
	"github.com/joao-fontenele/storefront-orders/internal/domain"
)

type fakeCatalog struct {
	products map[int64]*domain.Product
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{products: map[int64]*domain.Product{
		1: {ID: 1, Name: "Keyboard", SKU: "KB-1", Price: decimal.RequireFromString("49.90"), Stock: 3, LowStockThreshold: 5, IsEnabled: true},
		2: {ID: 2, Name: "Mouse", SKU: "MS-1", Price: decimal.RequireFromString("19.90"), Stock: 40, LowStockThreshold: 5, IsEnabled: true},
	}}
}

func (f *fakeCatalog) ListProducts(context.Context) ([]domain.Product, error) {
	return []domain.Product{*f.products[1], *f.products[2]}, nil
}

func (f *fakeCatalog) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	return f.products[id], nil
}

func (f *fakeCatalog) Restock(_ context.Context, id int64, qty int) (*domain.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, nil
	}
	p.Stock += qty
	return p, nil
}

func (f *fakeCatalog) SetPrice(_ context.Context, id int64, price decimal.Decimal) (*domain.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, nil
	}
	p.Price = price
	return p, nil
}

func newTestMux(c Catalog) *http.ServeMux {
	h := NewHandler(c, slog.New(slog.NewTextHandler(io.Discard, nil)))
	mux := http.NewServeMux()
	mux.HandleFunc("GET /products", h.HandleListProducts)
	mux.HandleFunc("GET /products/{id}", h.HandleGetProduct)
	mux.HandleFunc("POST /products/{id}/restock", h.HandleRestock)
	mux.HandleFunc("PUT /products/{id}/price", h.HandleSetPrice)
	return mux
}

func TestHandleListProducts(t *testing.T) {
	mux := newTestMux(newFakeCatalog())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body []map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(body) != 2 {
		t.Fatalf("expected 2 products, got %d", len(body))
	}
	if body[0]["low_stock"] != true {
		t.Errorf("expected keyboard flagged low stock, got %v", body[0]["low_stock"])
	}
	if body[1]["low_stock"] != false {
		t.Errorf("expected mouse not low stock, got %v", body[1]["low_stock"])
	}
}

func TestHandleGetProduct(t *testing.T) {
	mux := newTestMux(newFakeCatalog())

	tests := []struct {
		path string
		want int
	}{
		{"/products/1", http.StatusOK},
		{"/products/99", http.StatusNotFound},
		{"/products/abc", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestHandleRestock(t *testing.T) {
	catalog := newFakeCatalog()
	mux := newTestMux(catalog)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/products/1/restock", strings.NewReader(`{"quantity":10}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if catalog.products[1].Stock != 13 {
		t.Errorf("expected stock 13, got %d", catalog.products[1].Stock)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/products/1/restock", strings.NewReader(`{"quantity":0}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for zero quantity, got %d", rec.Code)
	}
}

func TestHandleSetPrice(t *testing.T) {
	catalog := newFakeCatalog()
	mux := newTestMux(catalog)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/products/2/price", strings.NewReader(`{"price":"24.50"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !catalog.products[2].Price.Equal(decimal.RequireFromString("24.50")) {
		t.Errorf("expected price 24.50, got %s", catalog.products[2].Price)
	}

	for _, body := range []string{`{"price":"-1"}`, `{}`} {
		rec = httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/products/2/price", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestRegisterRoutes_Authorization(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	authn := auth.NewAuthenticator("secret", logger)
	mux := http.NewServeMux()
	RegisterRoutes(mux, NewHandler(newFakeCatalog(), logger), authn, logger)

	token := func(role auth.Role) string {
		tok, err := authn.Issue(auth.Identity{UserID: 9, Role: role}, time.Hour)
		if err != nil {
			t.Fatalf("failed to issue token: %v", err)
		}
		return "Bearer " + tok
	}

	tests := []struct {
		name   string
		method string
		path   string
		authz  string
		status int
	}{
		{"anonymous read", http.MethodGet, "/products", "", http.StatusUnauthorized},
		{"customer read", http.MethodGet, "/products/1", token(auth.RoleCustomer), http.StatusOK},
		{"customer restock", http.MethodPost, "/products/1/restock", token(auth.RoleCustomer), http.StatusForbidden},
		{"seller price change", http.MethodPut, "/products/1/price", token(auth.RoleSeller), http.StatusForbidden},
		{"admin restock", http.MethodPost, "/products/1/restock", token(auth.RoleAdmin), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(`{"quantity":1}`))
			if tt.authz != "" {
				req.Header.Set("Authorization", tt.authz)
			}
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
		})
	}
}
