package handler

import (
	"net/http"

	logger "github.com/sirupsen/logrus"
)

// ConfirmSessionHandler returns a handler that records the operator's
// explicit trading confirmation for this session. Venues wrapped with a
// confirmation-requiring validator reject every order until this is called.
func ConfirmSessionHandler(confirm func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		confirm()
		logger.Info("trading session confirmed by operator")
		w.WriteHeader(http.StatusNoContent)
	}
}
