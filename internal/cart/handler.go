package cart

import (
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront-orders/internal/apperr"
	"github.com/joao-fontenele/storefront-orders/internal/auth"
	"github.com/joao-fontenele/storefront-orders/internal/httpx"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, r, h.logger, apperr.Unauthorized("missing bearer token"))
	}
	return id, ok
}

func (h *Handler) HandleGetCart(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	c, err := h.service.GetCart(r.Context(), id.UserID)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	h.writeJSON(w, http.StatusOK, c)
}

type addItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

func (h *Handler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req addItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	if req.ProductID < 1 {
		httpx.WriteError(w, r, h.logger, apperr.Validation("product_id is required"))
		return
	}

	if err := h.service.AddToCart(r.Context(), id.UserID, req.ProductID, req.Quantity); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	h.logger.Info("cart item added", "user_id", id.UserID, "product_id", req.ProductID, "quantity", req.Quantity)
	h.writeJSON(w, http.StatusCreated, map[string]string{"message": "item added to cart"})
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) HandleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	productID, err := httpx.PathID(r, "productId")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	var req updateItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	if err := h.service.UpdateQuantity(r.Context(), id.UserID, productID, req.Quantity); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "cart updated"})
}

func (h *Handler) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	productID, err := httpx.PathID(r, "productId")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	if err := h.service.RemoveFromCart(r.Context(), id.UserID, productID); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "item removed from cart"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	if err := httpx.WriteJSON(w, status, data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
