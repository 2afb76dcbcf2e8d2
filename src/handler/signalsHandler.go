package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	logger "github.com/sirupsen/logrus"

	"orderexecutor/src/model"
)

// SubmitSignalHandler returns a handler that accepts a trading signal and
// queues it for execution. Acceptance means queued, not executed: the
// response is 202 and the order's fate is visible through GET /orders.
func SubmitSignalHandler(sink chan<- model.Signal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sig model.Signal
		if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
			http.Error(w, "invalid signal payload", http.StatusBadRequest)
			return
		}

		if sig.Timestamp.IsZero() {
			sig.Timestamp = time.Now().UTC()
		}

		if err := sig.Validate(); err != nil {
			var verr *model.ValidationError
			if errors.As(err, &verr) {
				http.Error(w, verr.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "invalid signal", http.StatusBadRequest)
			return
		}

		select {
		case sink <- sig:
		default:
			logger.WithFields(logger.Fields{
				"strategy_id": sig.StrategyID,
				"symbol":      sig.Symbol,
			}).Warn("signal queue full, rejecting")
			http.Error(w, "signal queue full", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		if err := json.NewEncoder(w).Encode(map[string]string{"status": "accepted"}); err != nil {
			logger.WithError(err).Error("failed to encode signal response")
		}
	}
}
