package inventory

import (
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront-orders/internal/auth"
	"github.com/joao-fontenele/storefront-orders/internal/telemetry"
)

// RegisterRoutes mounts the catalog API. Reads need any valid token; stock
// and price changes need the admin role.
func RegisterRoutes(mux *http.ServeMux, h *Handler, authn *auth.Authenticator, logger *slog.Logger) {
	admin := auth.RequireRole(logger, auth.RoleAdmin)

	mux.Handle("GET /products", authn.Require(telemetry.WithHTTPRoute(h.HandleListProducts)))
	mux.Handle("GET /products/{id}", authn.Require(telemetry.WithHTTPRoute(h.HandleGetProduct)))
	mux.Handle("POST /products/{id}/restock", authn.Require(admin(telemetry.WithHTTPRoute(h.HandleRestock))))
	mux.Handle("PUT /products/{id}/price", authn.Require(admin(telemetry.WithHTTPRoute(h.HandleSetPrice))))
}
