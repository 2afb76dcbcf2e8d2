package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"orderexecutor/src/database"
	"orderexecutor/src/model"
)

// DiscrepancyRepository handles persistence of reconciliation findings.
type DiscrepancyRepository struct {
	db *gorm.DB
}

// NewDiscrepancyRepository creates a new repository instance using the main read/write database.
func NewDiscrepancyRepository() *DiscrepancyRepository {
	return &DiscrepancyRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *DiscrepancyRepository) WithDB(db *gorm.DB) *DiscrepancyRepository {
	return &DiscrepancyRepository{db: db}
}

// Create persists a new discrepancy.
func (r *DiscrepancyRepository) Create(ctx context.Context, d *model.Discrepancy) error {
	logger.WithFields(map[string]interface{}{
		"repo":     "DiscrepancyRepository",
		"op":       "Create",
		"type":     d.Type,
		"symbol":   d.Symbol,
		"severity": d.Severity,
	}).Warn("Persisting reconciliation discrepancy")

	if err := r.db.WithContext(ctx).Create(d).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "DiscrepancyRepository",
			"op":   "Create",
		}).WithError(err).Error("Failed to create discrepancy")
		return err
	}

	return nil
}

// FindLatest returns the latest discrepancies, newest first.
func (r *DiscrepancyRepository) FindLatest(ctx context.Context, limit int) ([]model.Discrepancy, error) {
	if limit <= 0 {
		limit = 50
	}

	var discrepancies []model.Discrepancy
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&discrepancies).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "DiscrepancyRepository",
			"op":    "FindLatest",
			"limit": limit,
		}).WithError(err).Error("Failed to fetch latest discrepancies")
		return nil, err
	}

	return discrepancies, nil
}

// MarkResolved flags a discrepancy as handled.
func (r *DiscrepancyRepository) MarkResolved(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).
		Model(&model.Discrepancy{}).
		Where("id = ?", id).
		Update("resolved", true).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":           "DiscrepancyRepository",
			"op":             "MarkResolved",
			"discrepancy_id": id,
		}).WithError(err).Error("Failed to mark discrepancy resolved")
		return err
	}

	return nil
}
