package reconcile

import (
	"context"
	"fmt"
	"math"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"orderexecutor/src/connectors"
	"orderexecutor/src/model"
	"orderexecutor/src/repository"
)

// Service periodically compares the local position book against the broker's
// positions. Broker state is the authority: the service may correct the local
// book, it never sends anything to the venue.
type Service struct {
	broker        connectors.QueryExtension
	positions     *repository.PositionRepository
	discrepancies *repository.DiscrepancyRepository
	alerter       Alerter
	interval      time.Duration
	tolerance     float64
	now           func() time.Time
}

func NewService(db *gorm.DB, broker connectors.QueryExtension, alerter Alerter, interval time.Duration, tolerance float64) *Service {
	if alerter == nil {
		alerter = LogAlerter{}
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Service{
		broker:        broker,
		positions:     (&repository.PositionRepository{}).WithDB(db),
		discrepancies: (&repository.DiscrepancyRepository{}).WithDB(db),
		alerter:       alerter,
		interval:      interval,
		tolerance:     tolerance,
		now:           time.Now,
	}
}

// Run reconciles once immediately, then on every tick until the context is
// cancelled.
func (s *Service) Run(ctx context.Context) {
	if _, err := s.ReconcileOnce(ctx); err != nil {
		logger.WithError(err).Error("startup reconciliation failed")
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ReconcileOnce(ctx); err != nil {
				logger.WithError(err).Error("scheduled reconciliation failed")
			}
		}
	}
}

// ReconcileOnce fetches broker positions, compares them to the local book and
// records a discrepancy per disagreement. A position the broker holds but the
// local book does not is adopted into the book and reported as a warning;
// quantity mismatches and phantom local positions are critical and left for
// an operator.
func (s *Service) ReconcileOnce(ctx context.Context) ([]model.Discrepancy, error) {
	brokerPositions, err := s.broker.GetPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching broker positions: %w", err)
	}

	book, err := s.positions.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading local position book: %w", err)
	}

	local := make(map[string]model.Position, len(book))
	for _, pos := range book {
		local[pos.Symbol] = pos
	}

	var findings []model.Discrepancy

	for _, bp := range brokerPositions {
		if bp.Quantity == 0 {
			continue
		}

		lp, ok := local[bp.Symbol]
		delete(local, bp.Symbol)

		if !ok || lp.Quantity == 0 {
			if err := s.positions.SetQuantity(ctx, bp.Symbol, bp.Quantity, bp.AvgEntryPrice); err != nil {
				return findings, fmt.Errorf("adopting broker position %s: %w", bp.Symbol, err)
			}
			findings = append(findings, s.record(ctx, model.Discrepancy{
				Type:        model.DiscrepancyMissingLocal,
				Symbol:      bp.Symbol,
				LocalValue:  lp.Quantity,
				BrokerValue: bp.Quantity,
				Severity:    model.SeverityWarning,
				Resolved:    true,
			}))
			continue
		}

		if math.Abs(lp.Quantity-bp.Quantity) > s.tolerance {
			findings = append(findings, s.record(ctx, model.Discrepancy{
				Type:        model.DiscrepancyQuantityMismatch,
				Symbol:      bp.Symbol,
				LocalValue:  lp.Quantity,
				BrokerValue: bp.Quantity,
				Severity:    model.SeverityCritical,
			}))
		}
	}

	for symbol, lp := range local {
		if lp.Quantity == 0 {
			continue
		}
		findings = append(findings, s.record(ctx, model.Discrepancy{
			Type:       model.DiscrepancyPhantomLocal,
			Symbol:     symbol,
			LocalValue: lp.Quantity,
			Severity:   model.SeverityCritical,
		}))
	}

	logger.WithFields(logger.Fields{
		"broker_positions": len(brokerPositions),
		"local_positions":  len(book),
		"discrepancies":    len(findings),
	}).Info("reconciliation pass completed")

	return findings, nil
}

func (s *Service) record(ctx context.Context, d model.Discrepancy) model.Discrepancy {
	d.DetectedAt = s.now().UTC()

	if err := s.discrepancies.Create(ctx, &d); err != nil {
		logger.WithFields(logger.Fields{
			"type":   d.Type,
			"symbol": d.Symbol,
		}).WithError(err).Error("failed to persist discrepancy")
	}

	s.alerter.Alert(ctx, d)
	return d
}
