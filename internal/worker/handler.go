// Package worker turns order events into customer notifications.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront-orders/internal/domain"
	"github.com/joao-fontenele/storefront-orders/internal/email"
	"github.com/joao-fontenele/storefront-orders/internal/messaging"
)

type NotificationHandler struct {
	emailServiceURL string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewNotificationHandler(emailServiceURL string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: emailServiceURL,
		httpClient:      client,
		logger:          logger,
	}
}

// Handle processes one order event. Malformed payloads are skipped; delivery
// failures are returned so the message is retried.
func (h *NotificationHandler) Handle(ctx context.Context, msg messaging.Message) error {
	var event domain.OrderEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("unmarshal order event at offset %d: %w", msg.Offset, messaging.ErrSkip)
	}

	h.logger.Info("processing order event", "type", event.Type, "order_id", event.OrderID, "user_id", event.UserID)

	if event.UserEmail == "" {
		h.logger.Warn("order event has no customer email", "order_id", event.OrderID)
		return nil
	}

	note, ok := notificationFor(event)
	if !ok {
		return nil
	}

	if err := h.sendEmail(ctx, note); err != nil {
		h.logger.Error("failed to send notification", "error", err, "order_id", event.OrderID, "type", event.Type)
		return fmt.Errorf("send notification for order %d: %w", event.OrderID, err)
	}

	h.logger.Info("notification sent", "order_id", event.OrderID, "type", event.Type)
	return nil
}

// notificationFor builds the customer email for an event. Events that need no
// email report false.
func notificationFor(e domain.OrderEvent) (email.Message, bool) {
	msg := email.Message{To: e.UserEmail}

	switch e.Type {
	case domain.EventOrderCreated:
		msg.Subject = "Order received: " + e.OrderNumber
		msg.Body = fmt.Sprintf("We received your order %s with %d item(s). Total: %s.",
			e.OrderNumber, len(e.Items), e.FinalPrice.StringFixed(2))
	case domain.EventOrderStatusChanged:
		switch e.Status {
		case domain.OrderStatusCancelled:
			msg.Subject = "Order cancelled: " + e.OrderNumber
			msg.Body = fmt.Sprintf("Your order %s has been cancelled.", e.OrderNumber)
		case domain.OrderStatusShipped, domain.OrderStatusDelivered, domain.OrderStatusRefunded:
			msg.Subject = fmt.Sprintf("Order %s: %s", e.OrderNumber, e.Status)
			msg.Body = fmt.Sprintf("Your order %s is now %s.", e.OrderNumber, e.Status)
		default:
			return email.Message{}, false
		}
	default:
		return email.Message{}, false
	}
	return msg, true
}

func (h *NotificationHandler) sendEmail(ctx context.Context, msg email.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}
