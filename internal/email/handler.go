package email

import (
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/joao-fontenele/storefront-orders/internal/apperr"
	"github.com/joao-fontenele/storefront-orders/internal/httpx"
)

type Handler struct {
	sender Sender
	logger *slog.Logger
}

func NewHandler(sender Sender, logger *slog.Logger) *Handler {
	return &Handler{
		sender: sender,
		logger: logger,
	}
}

type sendResponse struct {
	Status string `json:"status"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var msg Message
	if err := httpx.DecodeJSON(r, &msg); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	if _, err := mail.ParseAddress(msg.To); err != nil {
		httpx.WriteError(w, r, h.logger, apperr.Validation("invalid recipient %q", msg.To))
		return
	}
	if strings.TrimSpace(msg.Subject) == "" {
		httpx.WriteError(w, r, h.logger, apperr.Validation("subject is required"))
		return
	}

	if err := h.sender.Send(r.Context(), msg); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	if err := httpx.WriteJSON(w, http.StatusOK, sendResponse{Status: "sent"}); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
