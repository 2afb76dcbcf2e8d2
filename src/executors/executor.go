package executors

import (
	"context"

	logger "github.com/sirupsen/logrus"

	"orderexecutor/src/model"
)

// SignalExecutor runs one signal through the order lifecycle.
type SignalExecutor interface {
	Execute(ctx context.Context, sig model.Signal) (*model.Order, error)
}

// StartLoop consumes the signal channel until the context is cancelled. Each
// signal executes on its own goroutine so a slow venue call never blocks
// intake; ordering across different orders is not guaranteed, per-order
// serialization is the lifecycle manager's job.
func StartLoop(ctx context.Context, signals <-chan model.Signal, executor SignalExecutor) error {
	logger.Info("signal loop started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("signal loop stopped")
			return nil

		case sig, ok := <-signals:
			if !ok {
				logger.Info("signal channel closed, loop stopped")
				return nil
			}

			go func(sig model.Signal) {
				order, err := executor.Execute(ctx, sig)
				if err != nil {
					logger.WithFields(logger.Fields{
						"strategy_id": sig.StrategyID,
						"symbol":      sig.Symbol,
						"side":        sig.Action,
					}).WithError(err).Error("signal execution failed")
					return
				}

				logger.WithFields(logger.Fields{
					"strategy_id": sig.StrategyID,
					"order_id":    order.OrderID,
					"status":      order.Status,
				}).Info("signal executed")
			}(sig)
		}
	}
}
