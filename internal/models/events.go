package models

import "time"

// Event types
const (
	EventTypeOrderPlaced        = "ORDER_PLACED"
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent published once an order and its lines are committed
type OrderPlacedEvent struct {
	BaseEvent
	OrderID string          `json:"order_id"`
	OwnerID string          `json:"owner_id"`
	Status  string          `json:"status"`
	Items   []OrderLineData `json:"items"`
}

// OrderStatusChangedEvent published when an admin overwrites an order status
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID        string `json:"order_id"`
	PreviousStatus string `json:"previous_status"`
	Status         string `json:"status"`
}

// OrderLineData represents line data in events
type OrderLineData struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}
