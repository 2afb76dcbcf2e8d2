package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	logger "github.com/sirupsen/logrus"

	"orderexecutor/src/model"
	"orderexecutor/src/repository"
)

type discrepancyLister interface {
	FindLatest(ctx context.Context, limit int) ([]model.Discrepancy, error)
}

// ListDiscrepanciesHandler returns a handler that lists the most recent
// reconciliation findings.
func ListDiscrepanciesHandler(repo discrepancyLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
			parsed, err := strconv.Atoi(limitParam)
			if err != nil || parsed <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = parsed
		}

		discrepancies, err := repo.FindLatest(r.Context(), limit)
		if err != nil {
			logger.WithError(err).Error("failed to list discrepancies")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(discrepancies); err != nil {
			logger.WithError(err).Error("failed to encode discrepancy list response")
		}
	}
}

// DefaultListDiscrepanciesHandler wires the handler to the production repository implementation.
func DefaultListDiscrepanciesHandler() http.HandlerFunc {
	return ListDiscrepanciesHandler(repository.NewDiscrepancyRepository())
}
