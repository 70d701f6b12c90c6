package entity

import "time"

// Event represents a domain event.
type Event interface {
	EventType() string
}

// OrderPlaced is emitted once an order has committed: every stock decrement
// has been applied and the order record appended.
type OrderPlaced struct {
	OrderID  string      `json:"order_id"`
	Items    []OrderItem `json:"items"`
	Subtotal int         `json:"subtotal"`
	Total    int         `json:"total"`
	PlacedAt time.Time   `json:"placed_at"`
}

func (e OrderPlaced) EventType() string { return "OrderPlaced" }

// OrderStatusChanged is emitted when fulfillment moves an order to a new status.
type OrderStatusChanged struct {
	OrderID   string      `json:"order_id"`
	Status    OrderStatus `json:"status"`
	ChangedAt time.Time   `json:"changed_at"`
}

func (e OrderStatusChanged) EventType() string { return "OrderStatusChanged" }

// StockMovementRecorded is emitted for every committed stock mutation.
type StockMovementRecorded struct {
	Movement StockMovement `json:"movement"`
}

func (e StockMovementRecorded) EventType() string { return "StockMovementRecorded" }

// PricesReconciled is emitted when a sync pass finds page snapshots diverging
// from the ledger. Corrected carries the ledger-wins snapshot set; applying it
// to the page sources is an explicit operator step, never automatic.
type PricesReconciled struct {
	Divergences []Divergence          `json:"divergences"`
	Corrected   []PageProductSnapshot `json:"corrected"`
	CheckedAt   time.Time             `json:"checked_at"`
}

func (e PricesReconciled) EventType() string { return "PricesReconciled" }
