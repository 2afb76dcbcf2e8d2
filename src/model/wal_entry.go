package model

import "time"

const (
	WALStatusPending  = "pending"
	WALStatusComplete = "complete"

	WALOpSubmitOrder = "submit_order"
	WALOpCancelOrder = "cancel_order"
)

// WALEntry records operation intent before any externally visible side effect.
// An entry left pending at startup means the operation's outcome is unknown
// and must be resolved against venue truth, never replayed blindly.
type WALEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Operation string    `gorm:"size:32;index;not null" json:"operation"`
	Payload   string    `gorm:"type:text" json:"payload"`
	Status    string    `gorm:"size:16;index;not null;default:pending" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (WALEntry) TableName() string {
	return "wal_entries"
}
