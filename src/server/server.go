package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"orderexecutor/src/handler"
	"orderexecutor/src/model"
)

// OrderCanceller requests cancellation of a non-terminal order. The
// lifecycle manager satisfies it.
type OrderCanceller interface {
	Cancel(ctx context.Context, orderID string) (*model.Order, error)
}

// Deps are the wired components the ops routes expose.
type Deps struct {
	Signals        chan<- model.Signal
	Canceller      OrderCanceller
	ConfirmSession func()
}

// StartServer runs the ops HTTP server until the context is cancelled, then
// shuts down gracefully within config.ShutdownTimeout.
func StartServer(ctx context.Context, config *Config, deps Deps) {
	r := chi.NewRouter()

	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("\"/healthcheck\" error")
		}
	})

	r.Post("/signals", handler.SubmitSignalHandler(deps.Signals))
	r.Get("/orders", handler.DefaultListOrdersHandler())
	r.Get("/orders/{orderID}", handler.DefaultGetOrderHandler())
	r.Get("/discrepancies", handler.DefaultListDiscrepanciesHandler())

	if deps.Canceller != nil {
		r.Post("/orders/{orderID}/cancel", handler.CancelOrderHandler(deps.Canceller))
	}
	if deps.ConfirmSession != nil {
		r.Post("/session/confirm", handler.ConfirmSessionHandler(deps.ConfirmSession))
	}

	addr := ":" + config.Port
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	<-ctx.Done()

	logger.Info("Shutting down gracefully...")
	timeout := config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}
