package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"orderexecutor/src/database"
	"orderexecutor/src/model"
)

// PositionRepository handles persistence for the local position book.
type PositionRepository struct {
	db *gorm.DB
}

// NewPositionRepository creates a new repository instance using the main read/write database.
func NewPositionRepository() *PositionRepository {
	return &PositionRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *PositionRepository) WithDB(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// FindBySymbol fetches a position by symbol.
func (r *PositionRepository) FindBySymbol(ctx context.Context, symbol string) (*model.Position, error) {
	var pos model.Position
	err := r.db.WithContext(ctx).Where("symbol = ?", symbol).First(&pos).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":   "PositionRepository",
			"op":     "FindBySymbol",
			"symbol": symbol,
		}).WithError(err).Error("Failed to fetch position by symbol")
		return nil, err
	}

	return &pos, nil
}

// All returns every row in the local position book, including flat ones.
func (r *PositionRepository) All(ctx context.Context) ([]model.Position, error) {
	var positions []model.Position
	err := r.db.WithContext(ctx).Order("symbol ASC").Find(&positions).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "PositionRepository",
			"op":   "All",
		}).WithError(err).Error("Failed to fetch positions")
		return nil, err
	}

	return positions, nil
}

// ApplyFill folds an executed fill into the book. Buys increase quantity and
// move the average price toward the fill price; sells only reduce quantity.
func (r *PositionRepository) ApplyFill(ctx context.Context, strategyID string, fill *model.OrderFill) error {
	logger.WithFields(map[string]interface{}{
		"repo":    "PositionRepository",
		"op":      "ApplyFill",
		"symbol":  fill.Symbol,
		"side":    fill.Side,
		"qty":     fill.Quantity,
		"price":   fill.Price,
		"fill_id": fill.FillID,
	}).Debug("Applying fill to position book")

	pos, err := r.FindBySymbol(ctx, fill.Symbol)
	if err != nil {
		return err
	}
	if pos == nil {
		pos = &model.Position{
			Symbol:     fill.Symbol,
			StrategyID: strategyID,
		}
	}

	if fill.Side == model.ActionBuy {
		newQty := pos.Quantity + fill.Quantity
		if newQty > 0 {
			pos.AvgPrice = (pos.AvgPrice*pos.Quantity + fill.Price*fill.Quantity) / newQty
		}
		pos.Quantity = newQty
	} else {
		pos.Quantity -= fill.Quantity
		if pos.Quantity <= 0 {
			pos.Quantity = 0
			pos.AvgPrice = 0
		}
	}

	if err := r.db.WithContext(ctx).Save(pos).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "PositionRepository",
			"op":     "ApplyFill",
			"symbol": fill.Symbol,
		}).WithError(err).Error("Failed to persist position")
		return err
	}

	return nil
}

// SetQuantity overwrites the local belief for a symbol. Used by
// reconciliation when broker truth wins.
func (r *PositionRepository) SetQuantity(ctx context.Context, symbol string, quantity, avgPrice float64) error {
	logger.WithFields(map[string]interface{}{
		"repo":   "PositionRepository",
		"op":     "SetQuantity",
		"symbol": symbol,
		"qty":    quantity,
	}).Info("Overwriting local position from broker state")

	pos, err := r.FindBySymbol(ctx, symbol)
	if err != nil {
		return err
	}
	if pos == nil {
		pos = &model.Position{Symbol: symbol}
	}
	pos.Quantity = quantity
	pos.AvgPrice = avgPrice

	if err := r.db.WithContext(ctx).Save(pos).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "PositionRepository",
			"op":     "SetQuantity",
			"symbol": symbol,
		}).WithError(err).Error("Failed to overwrite position")
		return err
	}

	return nil
}
