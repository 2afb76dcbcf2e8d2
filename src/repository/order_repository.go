package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"orderexecutor/src/database"
	"orderexecutor/src/model"
)

// OrderRepository handles persistence for Order entities.
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new repository instance using the main read/write database.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *OrderRepository) WithDB(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts a new order into the database.
func (r *OrderRepository) Create(ctx context.Context, order *model.Order) error {
	logger.WithFields(map[string]interface{}{
		"repo":     "OrderRepository",
		"op":       "Create",
		"order_id": order.OrderID,
		"symbol":   order.Symbol,
		"side":     order.Side,
		"qty":      order.Quantity,
	}).Debug("Creating new order")

	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "OrderRepository",
			"op":       "Create",
			"order_id": order.OrderID,
		}).WithError(err).Error("Failed to create order")
		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":     "OrderRepository",
		"op":       "Create",
		"order_id": order.OrderID,
	}).Info("Order created successfully")

	return nil
}

// Save persists all fields of an existing order.
func (r *OrderRepository) Save(ctx context.Context, order *model.Order) error {
	logger.WithFields(map[string]interface{}{
		"repo":     "OrderRepository",
		"op":       "Save",
		"order_id": order.OrderID,
		"status":   order.Status,
	}).Debug("Saving order")

	if err := r.db.WithContext(ctx).Save(order).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "OrderRepository",
			"op":       "Save",
			"order_id": order.OrderID,
		}).WithError(err).Error("Failed to save order")
		return err
	}

	return nil
}

// FindByOrderID fetches an order by its internal client order ID.
func (r *OrderRepository) FindByOrderID(ctx context.Context, orderID string) (*model.Order, error) {
	logger.WithFields(map[string]interface{}{
		"repo":     "OrderRepository",
		"op":       "FindByOrderID",
		"order_id": orderID,
	}).Debug("Fetching order by client order ID")

	var order model.Order
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(map[string]interface{}{
				"repo":     "OrderRepository",
				"op":       "FindByOrderID",
				"order_id": orderID,
			}).Info("Order not found by client order ID")
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":     "OrderRepository",
			"op":       "FindByOrderID",
			"order_id": orderID,
		}).WithError(err).Error("Failed to fetch order by client order ID")
		return nil, err
	}

	return &order, nil
}

// FindByBrokerOrderID fetches an order by the identifier the venue assigned to it.
func (r *OrderRepository) FindByBrokerOrderID(ctx context.Context, brokerOrderID string) (*model.Order, error) {
	logger.WithFields(map[string]interface{}{
		"repo":            "OrderRepository",
		"op":              "FindByBrokerOrderID",
		"broker_order_id": brokerOrderID,
	}).Debug("Fetching order by broker order ID")

	var order model.Order
	err := r.db.WithContext(ctx).Where("broker_order_id = ?", brokerOrderID).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.WithFields(map[string]interface{}{
				"repo":            "OrderRepository",
				"op":              "FindByBrokerOrderID",
				"broker_order_id": brokerOrderID,
			}).Info("Order not found by broker order ID")
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":            "OrderRepository",
			"op":              "FindByBrokerOrderID",
			"broker_order_id": brokerOrderID,
		}).WithError(err).Error("Failed to fetch order by broker order ID")
		return nil, err
	}

	return &order, nil
}

// FindLatest returns the latest orders ordered from newest to oldest.
func (r *OrderRepository) FindLatest(ctx context.Context, limit int) ([]model.Order, error) {
	if limit <= 0 {
		limit = 20
	}

	logger.WithFields(map[string]interface{}{
		"repo":  "OrderRepository",
		"op":    "FindLatest",
		"limit": limit,
	}).Debug("Fetching latest orders")

	var orders []model.Order
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "OrderRepository",
			"op":    "FindLatest",
			"limit": limit,
		}).WithError(err).Error("Failed to fetch latest orders")
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"repo":        "OrderRepository",
		"op":          "FindLatest",
		"limit":       limit,
		"rows_return": len(orders),
	}).Info("Latest orders fetched")

	return orders, nil
}

// FindOpen returns all orders that have not reached a terminal status.
func (r *OrderRepository) FindOpen(ctx context.Context) ([]model.Order, error) {
	logger.WithFields(map[string]interface{}{
		"repo": "OrderRepository",
		"op":   "FindOpen",
	}).Debug("Fetching open orders")

	var orders []model.Order
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{
			model.OrderStatusPending,
			model.OrderStatusSubmitted,
			model.OrderStatusPartialFill,
		}).
		Order("id ASC").
		Find(&orders).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "OrderRepository",
			"op":   "FindOpen",
		}).WithError(err).Error("Failed to fetch open orders")
		return nil, err
	}

	return orders, nil
}
