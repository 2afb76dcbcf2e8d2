package model

import "time"

// Canonical order status vocabulary. Every venue maps its native statuses into
// this set; a cancel-acknowledged-but-not-final state maps to PENDING.
const (
	OrderStatusPending     = "PENDING"
	OrderStatusSubmitted   = "SUBMITTED"
	OrderStatusPartialFill = "PARTIAL_FILL"
	OrderStatusFilled      = "FILLED"
	OrderStatusCancelled   = "CANCELLED"
	OrderStatusRejected    = "REJECTED"
	OrderStatusExpired     = "EXPIRED"
)

// orderTransitions is the full set of legal status edges. A cancel request in
// flight stays in its pre-cancel status until the venue confirms.
var orderTransitions = map[string][]string{
	OrderStatusPending:     {OrderStatusSubmitted, OrderStatusRejected},
	OrderStatusSubmitted:   {OrderStatusPartialFill, OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected, OrderStatusExpired},
	OrderStatusPartialFill: {OrderStatusFilled, OrderStatusCancelled},
}

// CanTransitionOrderStatus reports whether moving from one canonical status to
// another follows a legal state-machine edge.
func CanTransitionOrderStatus(from, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalOrderStatus reports whether the status admits no further edges.
func IsTerminalOrderStatus(status string) bool {
	switch status {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected, OrderStatusExpired:
		return true
	}
	return false
}

// Order is the locally owned record of a trading decision. OrderID is
// generated internally and acts as the idempotency key for the pipeline;
// BrokerOrderID stays empty until the venue acknowledges.
type Order struct {
	ID            uint     `gorm:"primaryKey" json:"id"`
	OrderID       string   `gorm:"size:64;uniqueIndex;not null" json:"order_id"`
	BrokerOrderID *string  `gorm:"size:128;index" json:"broker_order_id,omitempty"`
	StrategyID    string   `gorm:"size:64;index" json:"strategy_id"`
	Symbol        string   `gorm:"size:32;index" json:"symbol"`
	Side          string   `gorm:"size:8" json:"side"`
	Quantity      float64  `json:"quantity"`
	OrderType     string   `gorm:"size:16" json:"order_type"`
	LimitPrice    *float64 `json:"limit_price,omitempty"`

	Status       string  `gorm:"size:20;not null;default:PENDING" json:"status"`
	FilledQty    float64 `json:"filled_qty"`
	AvgFillPrice float64 `json:"avg_fill_price"`
	ErrorMessage string  `gorm:"type:text" json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}
