package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"orderexecutor/src/database"
	"orderexecutor/src/model"
)

// FillRepository handles persistence for order fills.
type FillRepository struct {
	db *gorm.DB
}

// NewFillRepository creates a new repository instance using the main read/write database.
func NewFillRepository() *FillRepository {
	return &FillRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *FillRepository) WithDB(db *gorm.DB) *FillRepository {
	return &FillRepository{db: db}
}

// Create inserts a new fill into the database.
func (r *FillRepository) Create(ctx context.Context, fill *model.OrderFill) error {
	logger.WithFields(map[string]interface{}{
		"repo":    "FillRepository",
		"op":      "Create",
		"fill_id": fill.FillID,
		"symbol":  fill.Symbol,
		"qty":     fill.Quantity,
	}).Debug("Creating new fill")

	if err := r.db.WithContext(ctx).Create(fill).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "FillRepository",
			"op":      "Create",
			"fill_id": fill.FillID,
		}).WithError(err).Error("Failed to create fill")
		return err
	}

	return nil
}

// ExistsByFillID reports whether a fill with the given venue fill ID has
// already been recorded.
func (r *FillRepository) ExistsByFillID(ctx context.Context, fillID string) (bool, error) {
	var fill model.OrderFill
	err := r.db.WithContext(ctx).
		Select("id").
		Where("fill_id = ?", fillID).
		First(&fill).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":    "FillRepository",
			"op":      "ExistsByFillID",
			"fill_id": fillID,
		}).WithError(err).Error("Failed to check fill existence")
		return false, err
	}

	return true, nil
}

// FindByOrderID returns all fills recorded for a venue order, oldest first.
func (r *FillRepository) FindByOrderID(ctx context.Context, orderID string) ([]model.OrderFill, error) {
	var fills []model.OrderFill
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&fills).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "FillRepository",
			"op":       "FindByOrderID",
			"order_id": orderID,
		}).WithError(err).Error("Failed to fetch fills by order ID")
		return nil, err
	}

	return fills, nil
}
