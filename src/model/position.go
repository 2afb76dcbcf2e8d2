package model

import "time"

// Position is the locally believed position book, maintained from fills.
// Reconciliation compares it against broker-reported positions and may
// correct it; broker state is never mutated from here.
type Position struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Symbol     string    `gorm:"size:32;uniqueIndex" json:"symbol"`
	Quantity   float64   `json:"quantity"`
	AvgPrice   float64   `json:"avg_price"`
	StrategyID string    `gorm:"size:64;index" json:"strategy_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Position) TableName() string {
	return "positions"
}
