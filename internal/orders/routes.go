package orders

import (
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront-orders/internal/auth"
	"github.com/joao-fontenele/storefront-orders/internal/cart"
	"github.com/joao-fontenele/storefront-orders/internal/telemetry"
)

// Routes carries what RegisterRoutes needs. Idempotency may be nil.
type Routes struct {
	Orders      *Handler
	Cart        *cart.Handler
	Auth        *auth.Authenticator
	Idempotency func(http.Handler) http.Handler
	Logger      *slog.Logger
}

// RegisterRoutes mounts the order and cart API on mux. Every route needs a
// bearer token; the admin routes also need the admin role.
func RegisterRoutes(mux *http.ServeMux, rt Routes) {
	authed := func(h http.HandlerFunc) http.Handler {
		return rt.Auth.Require(telemetry.WithHTTPRoute(h))
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return rt.Auth.Require(auth.RequireRole(rt.Logger, auth.RoleAdmin)(telemetry.WithHTTPRoute(h)))
	}

	create := http.Handler(telemetry.WithHTTPRoute(rt.Orders.HandleCreate))
	if rt.Idempotency != nil {
		create = rt.Idempotency(create)
	}

	mux.Handle("POST /orders", rt.Auth.Require(create))
	mux.Handle("GET /orders", authed(rt.Orders.HandleList))
	mux.Handle("GET /orders/{id}", authed(rt.Orders.HandleGet))
	mux.Handle("POST /orders/{id}/cancel", authed(rt.Orders.HandleCancel))
	mux.Handle("GET /orders/admin/all", admin(rt.Orders.HandleListAll))
	mux.Handle("PUT /orders/{id}/status", admin(rt.Orders.HandleUpdateStatus))
	mux.Handle("DELETE /orders/{id}", admin(rt.Orders.HandleDelete))

	mux.Handle("GET /cart", authed(rt.Cart.HandleGetCart))
	mux.Handle("POST /cart/items", authed(rt.Cart.HandleAddItem))
	mux.Handle("PUT /cart/items/{productId}", authed(rt.Cart.HandleUpdateItem))
	mux.Handle("DELETE /cart/items/{productId}", authed(rt.Cart.HandleRemoveItem))
}
