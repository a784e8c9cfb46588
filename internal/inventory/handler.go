package inventory

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront-orders/internal/apperr"
	"github.com/joao-fontenele/storefront-orders/internal/domain"
	"github.com/joao-fontenele/storefront-orders/internal/httpx"
)

// Catalog is the part of ProductRepository the HTTP layer needs.
type Catalog interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	Restock(ctx context.Context, productID int64, quantity int) (*domain.Product, error)
	SetPrice(ctx context.Context, productID int64, price decimal.Decimal) (*domain.Product, error)
}

type Handler struct {
	catalog Catalog
	logger  *slog.Logger
}

func NewHandler(catalog Catalog, logger *slog.Logger) *Handler {
	return &Handler{
		catalog: catalog,
		logger:  logger,
	}
}

type productResponse struct {
	domain.Product
	LowStock bool `json:"low_stock"`
}

func toResponse(p *domain.Product) productResponse {
	return productResponse{Product: *p, LowStock: p.LowStock()}
}

func (h *Handler) HandleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context())
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	resp := make([]productResponse, 0, len(products))
	for i := range products {
		resp = append(resp, toResponse(&products[i]))
	}

	h.logger.Info("products listed", "count", len(resp))
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	p, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	if p == nil {
		httpx.WriteError(w, r, h.logger, apperr.ProductNotFound(id))
		return
	}

	h.writeJSON(w, http.StatusOK, toResponse(p))
}

type restockRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) HandleRestock(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	var req restockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	if req.Quantity < 1 {
		httpx.WriteError(w, r, h.logger, apperr.Validation("quantity must be at least 1"))
		return
	}

	p, err := h.catalog.Restock(r.Context(), id, req.Quantity)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	if p == nil {
		httpx.WriteError(w, r, h.logger, apperr.ProductNotFound(id))
		return
	}

	h.logger.Info("product restocked", "product_id", id, "quantity", req.Quantity, "stock", p.Stock)
	h.writeJSON(w, http.StatusOK, toResponse(p))
}

type priceRequest struct {
	Price *decimal.Decimal `json:"price"`
}

func (h *Handler) HandleSetPrice(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	var req priceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	if req.Price == nil || req.Price.IsNegative() {
		httpx.WriteError(w, r, h.logger, apperr.Validation("price must be zero or greater"))
		return
	}

	p, err := h.catalog.SetPrice(r.Context(), id, *req.Price)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	if p == nil {
		httpx.WriteError(w, r, h.logger, apperr.ProductNotFound(id))
		return
	}

	h.logger.Info("product price changed", "product_id", id, "price", p.Price.String())
	h.writeJSON(w, http.StatusOK, toResponse(p))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	if err := httpx.WriteJSON(w, status, data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
