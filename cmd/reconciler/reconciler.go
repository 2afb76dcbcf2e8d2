package reconciler

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"orderexecutor/src/connectors"
	"orderexecutor/src/database"
	"orderexecutor/src/reconcile"
	"orderexecutor/src/security"
)

type Reconciler struct{}

// Start runs a single reconciliation pass against the configured venue and
// exits. Meant for operators investigating a suspected position drift.
func (r *Reconciler) Start() error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to main database")
		return err
	}

	cfg := connectors.GetConfig()

	var queryExt connectors.QueryExtension
	switch cfg.BrokerType {
	case connectors.BrokerTypeSim:
		// A fresh sim venue holds nothing: every local position is phantom.
		queryExt = connectors.NewSimConnector(connectors.NewStaticQuoteSource(), cfg.SimSlippageBps, cfg.SimCommissionBps, cfg.SimStartingCash)

	case connectors.BrokerTypeNexus:
		secCfg := security.GetConfig()
		creds, err := security.LoadCredentials(cfg.NexusCredentialsPath, secCfg.CredentialsPassphrase)
		if err != nil {
			return fmt.Errorf("loading venue credentials: %w", err)
		}
		session := connectors.NewNexusRESTSession(creds.APIKey, creds.APISecret, cfg.NexusBaseURL, cfg.NexusWSBaseURL)
		nexus := connectors.NewNexusConnector(session, cfg.NexusAccountID, security.NewSanitizer(creds.APIKey, creds.APISecret))
		if err := nexus.Connect(ctx); err != nil {
			return fmt.Errorf("connecting to venue: %w", err)
		}
		defer func() { _ = nexus.Disconnect() }()
		queryExt = nexus

	default:
		return fmt.Errorf("unknown broker type %q", cfg.BrokerType)
	}

	reconCfg := reconcile.GetConfig()
	svc := reconcile.NewService(database.MainDB, queryExt, reconcile.LogAlerter{}, reconCfg.Interval, reconCfg.Tolerance)

	findings, err := svc.ReconcileOnce(ctx)
	if err != nil {
		return err
	}

	logrus.WithField("discrepancies", len(findings)).Info("reconciliation pass finished")
	return nil
}
