package model

import "time"

const (
	DiscrepancyMissingLocal     = "missing_local"
	DiscrepancyQuantityMismatch = "quantity_mismatch"
	DiscrepancyPhantomLocal     = "phantom_local"

	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Discrepancy is a reconciliation finding: local belief and broker truth
// disagree for a symbol. phantom_local and unresolved quantity_mismatch are
// always critical; missing_local is auto-corrected and reported as a warning.
type Discrepancy struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Type        string    `gorm:"size:32;index" json:"type"`
	Symbol      string    `gorm:"size:32;index" json:"symbol"`
	LocalValue  float64   `json:"local_value"`
	BrokerValue float64   `json:"broker_value"`
	Severity    string    `gorm:"size:16" json:"severity"`
	Resolved    bool      `gorm:"index" json:"resolved"`
	DetectedAt  time.Time `json:"detected_at"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Discrepancy) TableName() string {
	return "discrepancies"
}
