package trader

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"orderexecutor/src/connectors"
	"orderexecutor/src/database"
	"orderexecutor/src/executors"
	"orderexecutor/src/lifecycle"
	"orderexecutor/src/model"
	"orderexecutor/src/reconcile"
	"orderexecutor/src/repository"
	"orderexecutor/src/risk"
	"orderexecutor/src/security"
	"orderexecutor/src/server"
	"orderexecutor/src/validator"
)

type Trader struct{}

// Start wires the whole execution service together: database, venue adapter,
// risk gate, lifecycle manager, reconciler and ops server. It blocks until
// SIGINT or SIGTERM.
func (t *Trader) Start() error {
	config := GetConfig()

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

	connCfg := connectors.GetConfig()

	quotes := buildQuoteSource(connCfg)
	refPrice := lifecycle.QuoteRefPrice(quotes)

	venue, queryExt, err := buildVenue(ctx, connCfg, quotes)
	if err != nil {
		return err
	}

	riskState := risk.NewState()
	adapter := validator.NewValidatingAdapter(venue, validator.Options{
		MaxPositionSize:     config.ValidatorMaxPositionSize,
		MaxOrderValue:       config.ValidatorMaxOrderValue,
		RequireConfirmation: config.RequireConfirmation,
		Halted:              riskState.KillSwitch,
		RefPrice:            refPrice,
	})

	riskCfg := risk.GetConfig()
	staleAfter, err := time.ParseDuration(riskCfg.BiasStaleAfter)
	if err != nil {
		staleAfter = 5 * time.Minute
	}

	var bias risk.BiasProvider
	if config.BiasRedisAddr != "" {
		bias = risk.NewRedisBiasCache(config.BiasRedisAddr, config.BiasRedisPassword, config.BiasRedisDB)
	}

	positions := (&repository.PositionRepository{}).WithDB(database.MainDB)
	portfolio := lifecycle.NewBookPortfolio(positions, queryExt, refPrice, riskState)
	gate := risk.NewGate(risk.LimitsFromConfig(riskCfg), riskState, bias, staleAfter, portfolio, refPrice)

	manager := lifecycle.NewManager(database.MainDB, adapter, gate, nil)

	if err := manager.ReplayPending(ctx); err != nil {
		logrus.WithError(err).Error("WAL replay failed")
		return err
	}

	reconCfg := reconcile.GetConfig()
	reconService := reconcile.NewService(database.MainDB, queryExt, reconcile.LogAlerter{}, reconCfg.Interval, reconCfg.Tolerance)
	go reconService.Run(ctx)

	signals := make(chan model.Signal, executors.GetConfig().SignalBuffer)
	go func() {
		if err := executors.StartLoop(ctx, signals, manager); err != nil {
			logrus.WithError(err).Error("signal loop exited")
		}
	}()

	server.StartServer(ctx, server.GetConfig(), server.Deps{
		Signals:        signals,
		Canceller:      manager,
		ConfirmSession: adapter.Confirm,
	})

	return nil
}

func buildQuoteSource(cfg connectors.Config) connectors.QuoteSource {
	if cfg.QuoteSource == "goex" {
		return connectors.NewGoexQuoteSource(cfg.QuoteCurrency, cfg.QuoteCacheTTL)
	}
	return connectors.NewStaticQuoteSource()
}

// buildVenue constructs the configured execution venue. Both venues expose
// the read-only account surface reconciliation needs.
func buildVenue(ctx context.Context, cfg connectors.Config, quotes connectors.QuoteSource) (connectors.BrokerAdapter, connectors.QueryExtension, error) {
	switch cfg.BrokerType {
	case connectors.BrokerTypeSim:
		sim := connectors.NewSimConnector(quotes, cfg.SimSlippageBps, cfg.SimCommissionBps, cfg.SimStartingCash)
		return sim, sim, nil

	case connectors.BrokerTypeNexus:
		secCfg := security.GetConfig()
		creds, err := security.LoadCredentials(cfg.NexusCredentialsPath, secCfg.CredentialsPassphrase)
		if err != nil {
			return nil, nil, fmt.Errorf("loading venue credentials: %w", err)
		}

		sanitize := security.NewSanitizer(creds.APIKey, creds.APISecret)
		session := connectors.NewNexusRESTSession(creds.APIKey, creds.APISecret, cfg.NexusBaseURL, cfg.NexusWSBaseURL)
		nexus := connectors.NewNexusConnector(session, cfg.NexusAccountID, sanitize)

		if err := nexus.Connect(ctx); err != nil {
			return nil, nil, fmt.Errorf("connecting to venue: %w", err)
		}
		return nexus, nexus, nil

	default:
		return nil, nil, fmt.Errorf("unknown broker type %q", cfg.BrokerType)
	}
}
