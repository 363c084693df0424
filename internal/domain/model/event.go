package model

import "time"

type OrderEventType string

const (
	OrderEventPlaced        OrderEventType = "order.placed"
	OrderEventCancelled     OrderEventType = "order.cancelled"
	OrderEventStatusChanged OrderEventType = "order.status_changed"
)

// コミット後に外へ流す注文イベント
type OrderEvent struct {
	Type           OrderEventType `json:"type"`
	OrderID        int64          `json:"order_id"`
	OrderNumber    string         `json:"order_number"`
	UserID         int64          `json:"user_id"`
	Status         OrderStatus    `json:"status"`
	PreviousStatus OrderStatus    `json:"previous_status,omitempty"`
	PaymentStatus  PaymentStatus  `json:"payment_status"`
	Reason         string         `json:"reason,omitempty"`
	ActorID        int64          `json:"actor_id"`
	OccurredAt     time.Time      `json:"occurred_at"`
}

type InventoryEventType string

const (
	InventoryEventAdjusted InventoryEventType = "inventory.adjusted"
	InventoryEventLowStock InventoryEventType = "inventory.low_stock"
)

type InventoryEvent struct {
	Type              InventoryEventType `json:"type"`
	ProductID         int64              `json:"product_id"`
	LogType           InventoryLogType   `json:"log_type"`
	QuantityDelta     int64              `json:"quantity_delta"`
	Quantity          int64              `json:"quantity"`
	AvailableQuantity int64              `json:"available_quantity"`
	LowStockThreshold int64              `json:"low_stock_threshold"`
	OrderID           *int64             `json:"order_id,omitempty"`
	OccurredAt        time.Time          `json:"occurred_at"`
}
