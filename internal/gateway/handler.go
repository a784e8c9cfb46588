// Package gateway is the public edge: it routes storefront requests to the
// orders and inventory services.
package gateway

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/joao-fontenele/storefront-orders/internal/httpx"
	"github.com/joao-fontenele/storefront-orders/internal/telemetry"
)

type Handler struct {
	ordersProxy    *ServiceProxy
	inventoryProxy *ServiceProxy
	logger         *slog.Logger
}

func NewHandler(ordersProxy, inventoryProxy *ServiceProxy, logger *slog.Logger) *Handler {
	return &Handler{
		ordersProxy:    ordersProxy,
		inventoryProxy: inventoryProxy,
		logger:         logger,
	}
}

// RegisterRoutes mounts every public route. Orders and cart go to the orders
// service, products to inventory.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	for _, pattern := range []string{
		"GET /orders",
		"POST /orders",
		"GET /orders/{id}",
		"POST /orders/{id}/cancel",
		"GET /orders/admin/all",
		"PUT /orders/{id}/status",
		"DELETE /orders/{id}",
		"GET /cart",
		"POST /cart/items",
		"PUT /cart/items/{productId}",
		"DELETE /cart/items/{productId}",
	} {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(h.HandleOrders))
	}

	for _, pattern := range []string{
		"GET /products",
		"GET /products/{id}",
		"POST /products/{id}/restock",
		"PUT /products/{id}/price",
	} {
		mux.HandleFunc(pattern, telemetry.WithHTTPRoute(h.HandleCatalog))
	}

	mux.HandleFunc("GET /healthz", httpx.Healthz)
}

func (h *Handler) HandleOrders(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.ordersProxy, r.URL.Path)
}

func (h *Handler) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.inventoryProxy, r.URL.Path)
}

func (h *Handler) proxyRequest(w http.ResponseWriter, r *http.Request, proxy *ServiceProxy, path string) {
	if reqID := middleware.GetReqID(r.Context()); reqID != "" && r.Header.Get("X-Request-Id") == "" {
		r.Header.Set("X-Request-Id", reqID)
	}

	resp, err := proxy.ForwardRequest(r.Context(), r, path)
	if err != nil {
		h.logger.Error("failed to forward request", "error", err, "path", path)
		h.writeError(w, http.StatusBadGateway, "service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	for _, name := range returnedHeaders {
		if v := resp.Header.Get(name); v != "" {
			w.Header().Set(name, v)
		}
	}

	w.WriteHeader(resp.StatusCode)

	h.logger.Info("request proxied", "method", r.Method, "path", path, "status", resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to copy response body", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	if err := httpx.WriteJSON(w, status, map[string]string{"error": "bad_gateway", "message": message}); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}
