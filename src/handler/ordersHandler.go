package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"orderexecutor/src/model"
	"orderexecutor/src/repository"
)

type orderLister interface {
	FindLatest(ctx context.Context, limit int) ([]model.Order, error)
}

type orderFinder interface {
	FindByOrderID(ctx context.Context, orderID string) (*model.Order, error)
}

type orderCanceller interface {
	Cancel(ctx context.Context, orderID string) (*model.Order, error)
}

// ListOrdersHandler returns a handler that lists the most recent orders.
// Supports an optional limit query parameter.
func ListOrdersHandler(repo orderLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
			parsed, err := strconv.Atoi(limitParam)
			if err != nil || parsed <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		orders, err := repo.FindLatest(r.Context(), limit)
		if err != nil {
			logger.WithError(err).Error("failed to list orders")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(orders); err != nil {
			logger.WithError(err).Error("failed to encode order list response")
		}
	}
}

// GetOrderHandler returns a handler that fetches one order by its client
// order id.
func GetOrderHandler(repo orderFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "orderID")

		order, err := repo.FindByOrderID(r.Context(), orderID)
		if err != nil {
			logger.WithError(err).Error("failed to fetch order")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if order == nil {
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(order); err != nil {
			logger.WithError(err).Error("failed to encode order response")
		}
	}
}

// CancelOrderHandler returns a handler that requests cancellation of a
// non-terminal order.
func CancelOrderHandler(canceller orderCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := chi.URLParam(r, "orderID")

		order, err := canceller.Cancel(r.Context(), orderID)
		if err != nil {
			if order == nil {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(order); err != nil {
			logger.WithError(err).Error("failed to encode cancel response")
		}
	}
}

// DefaultListOrdersHandler wires the handler to the production repository implementation.
func DefaultListOrdersHandler() http.HandlerFunc {
	return ListOrdersHandler(repository.NewOrderRepository())
}

// DefaultGetOrderHandler wires the handler to the production repository implementation.
func DefaultGetOrderHandler() http.HandlerFunc {
	return GetOrderHandler(repository.NewOrderRepository())
}
