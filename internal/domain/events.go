package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const TopicOrderEvents = "order.events"

type OrderEventType string

const (
	EventOrderCreated       OrderEventType = "order.created"
	EventOrderStatusChanged OrderEventType = "order.status_changed"
)

type OrderEvent struct {
	Type           OrderEventType  `json:"type"`
	OrderID        int64           `json:"order_id"`
	OrderNumber    string          `json:"order_number"`
	UserID         int64           `json:"user_id"`
	UserEmail      string          `json:"user_email,omitempty"`
	Status         OrderStatus     `json:"status"`
	PreviousStatus OrderStatus     `json:"previous_status,omitempty"`
	PaymentStatus  PaymentStatus   `json:"payment_status"`
	FinalPrice     decimal.Decimal `json:"final_price"`
	Items          []OrderItem     `json:"items,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

func NewOrderEvent(t OrderEventType, o *Order, email string, at time.Time) OrderEvent {
	return OrderEvent{
		Type:          t,
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		UserEmail:     email,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		FinalPrice:    o.FinalPrice,
		Items:         o.Items,
		Timestamp:     at,
	}
}

// EventType names the event for transport headers.
func (e OrderEvent) EventType() string {
	return string(e.Type)
}
