package model

import "time"

// OrderFill is a venue confirmation that some quantity executed. FillID is
// venue-unique and is the idempotency key for fill processing: the same
// FillID must never be applied to an order twice.
type OrderFill struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	FillID    string    `gorm:"size:128;uniqueIndex;not null" json:"fill_id"`
	OrderID   string    `gorm:"size:128;index" json:"order_id"` // venue-side order identifier
	Symbol    string    `gorm:"size:32" json:"symbol"`
	Side      string    `gorm:"size:8" json:"side"`
	Quantity  float64   `json:"quantity"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"created_at"`
}

func (OrderFill) TableName() string {
	return "order_fills"
}
