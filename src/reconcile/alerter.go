package reconcile

import (
	"context"

	logger "github.com/sirupsen/logrus"

	"orderexecutor/src/model"
)

// Alerter receives reconciliation findings as they are detected.
type Alerter interface {
	Alert(ctx context.Context, d model.Discrepancy)
}

// LogAlerter reports discrepancies through the structured log, critical
// findings at error level.
type LogAlerter struct{}

func (LogAlerter) Alert(ctx context.Context, d model.Discrepancy) {
	entry := logger.WithFields(logger.Fields{
		"type":         d.Type,
		"symbol":       d.Symbol,
		"local_value":  d.LocalValue,
		"broker_value": d.BrokerValue,
		"severity":     d.Severity,
		"resolved":     d.Resolved,
	})

	if d.Severity == model.SeverityCritical {
		entry.Error("position reconciliation discrepancy")
		return
	}
	entry.Warn("position reconciliation discrepancy")
}
