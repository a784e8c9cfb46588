package orders

import (
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront-orders/internal/apperr"
	"github.com/joao-fontenele/storefront-orders/internal/auth"
	"github.com/joao-fontenele/storefront-orders/internal/domain"
	"github.com/joao-fontenele/storefront-orders/internal/httpx"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, r, h.logger, apperr.Unauthorized("missing bearer token"))
	}
	return id, ok
}

type createOrderResponse struct {
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	FinalPrice  decimal.Decimal `json:"final_price"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req CreateOrderInput
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	order, err := h.service.CreateOrder(r.Context(), id, req)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, createOrderResponse{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		FinalPrice:  order.FinalPrice,
	})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	orderID, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	order, err := h.service.GetOrderDetails(r.Context(), orderID, id.UserID)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) filterFromQuery(r *http.Request) (domain.OrderFilter, error) {
	var f domain.OrderFilter

	page, err := httpx.QueryInt(r, "page", 1)
	if err != nil {
		return f, err
	}
	limit, err := httpx.QueryInt(r, "limit", domain.DefaultPageSize)
	if err != nil {
		return f, err
	}
	f.Page, f.PageSize = page, limit

	if v := r.URL.Query().Get("status"); v != "" {
		st, ok := domain.ParseOrderStatus(v)
		if !ok {
			return f, apperr.InvalidValue("invalid status %q", v)
		}
		f.Status = &st
	}
	return f, nil
}

// HandleList returns the caller's own orders as a plain array.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	f, err := h.filterFromQuery(r)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	f.UserID = &id.UserID

	page, err := h.service.ListOrders(r.Context(), f)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	h.writeJSON(w, http.StatusOK, page.Orders)
}

// HandleListAll is the admin listing across all customers.
func (h *Handler) HandleListAll(w http.ResponseWriter, r *http.Request) {
	f, err := h.filterFromQuery(r)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	f.IncludeUser = true

	page, err := h.service.ListOrders(r.Context(), f)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	h.writeJSON(w, http.StatusOK, page)
}

type cancelResponse struct {
	OrderID int64              `json:"order_id"`
	Status  domain.OrderStatus `json:"status"`
}

func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	orderID, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	order, err := h.service.CancelOrder(r.Context(), orderID, id.UserID)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	h.writeJSON(w, http.StatusOK, cancelResponse{OrderID: order.ID, Status: order.Status})
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	var req UpdateStatusInput
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	order, err := h.service.UpdateOrderStatus(r.Context(), orderID, req)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	orderID, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	if err := h.service.DeleteOrder(r.Context(), orderID); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	if err := httpx.WriteJSON(w, status, data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
