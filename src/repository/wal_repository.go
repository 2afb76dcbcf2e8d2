package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"orderexecutor/src/database"
	"orderexecutor/src/model"
)

// WALRepository handles persistence for write-ahead log entries.
type WALRepository struct {
	db *gorm.DB
}

// NewWALRepository creates a new repository instance using the main read/write database.
func NewWALRepository() *WALRepository {
	return &WALRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *WALRepository) WithDB(db *gorm.DB) *WALRepository {
	return &WALRepository{db: db}
}

// Append writes a pending entry. It must be called before the side effect
// the entry describes is attempted.
func (r *WALRepository) Append(ctx context.Context, operation, payload string) (*model.WALEntry, error) {
	entry := &model.WALEntry{
		Operation: operation,
		Payload:   payload,
		Status:    model.WALStatusPending,
	}

	logger.WithFields(map[string]interface{}{
		"repo": "WALRepository",
		"op":   "Append",
		"wal":  operation,
	}).Debug("Appending WAL entry")

	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "WALRepository",
			"op":   "Append",
			"wal":  operation,
		}).WithError(err).Error("Failed to append WAL entry")
		return nil, err
	}

	return entry, nil
}

// MarkComplete marks an entry as finished after its outcome has been recorded.
func (r *WALRepository) MarkComplete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).
		Model(&model.WALEntry{}).
		Where("id = ?", id).
		Update("status", model.WALStatusComplete).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "WALRepository",
			"op":     "MarkComplete",
			"wal_id": id,
		}).WithError(err).Error("Failed to mark WAL entry complete")
		return err
	}

	return nil
}

// FindPending returns all entries whose outcome is still unknown, oldest first.
func (r *WALRepository) FindPending(ctx context.Context) ([]model.WALEntry, error) {
	var entries []model.WALEntry
	err := r.db.WithContext(ctx).
		Where("status = ?", model.WALStatusPending).
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "WALRepository",
			"op":   "FindPending",
		}).WithError(err).Error("Failed to fetch pending WAL entries")
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "WALRepository",
		"op":          "FindPending",
		"rows_return": len(entries),
	}).Info("Pending WAL entries fetched")

	return entries, nil
}
