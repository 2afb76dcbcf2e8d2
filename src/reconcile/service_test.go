package reconcile

import (
	"context"
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"orderexecutor/src/database"
	"orderexecutor/src/model"
	"orderexecutor/src/repository"
)

var testDBSeq int

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	testDBSeq++

	dsn := fmt.Sprintf("file:reconcile_test_%d?mode=memory&cache=shared", testDBSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := database.MigrateMainDB(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

type fakeBroker struct {
	positions []model.BrokerPosition
	err       error
}

func (f *fakeBroker) GetPositions(ctx context.Context) ([]model.BrokerPosition, error) {
	return f.positions, f.err
}

func (f *fakeBroker) GetAccount(ctx context.Context) (model.BrokerAccount, error) {
	return model.BrokerAccount{}, nil
}

type recordingAlerter struct {
	alerts []model.Discrepancy
}

func (r *recordingAlerter) Alert(ctx context.Context, d model.Discrepancy) {
	r.alerts = append(r.alerts, d)
}

func seedPosition(t *testing.T, db *gorm.DB, symbol string, qty, avg float64) {
	t.Helper()
	repo := (&repository.PositionRepository{}).WithDB(db)
	if err := repo.SetQuantity(context.Background(), symbol, qty, avg); err != nil {
		t.Fatalf("failed to seed position %s: %v", symbol, err)
	}
}

func TestReconcileAdoptsMissingLocalPosition(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedPosition(t, db, "AAPL", 100, 150)

	broker := &fakeBroker{positions: []model.BrokerPosition{
		{Symbol: "AAPL", Quantity: 100, AvgEntryPrice: 150},
		{Symbol: "MSFT", Quantity: 50, AvgEntryPrice: 300},
	}}
	alerter := &recordingAlerter{}
	svc := NewService(db, broker, alerter, time.Minute, 0.0001)

	findings, err := svc.ReconcileOnce(ctx)
	if err != nil {
		t.Fatalf("expected reconciliation to succeed, got %v", err)
	}

	if len(findings) != 1 {
		t.Fatalf("expected exactly 1 discrepancy, got %d: %+v", len(findings), findings)
	}
	d := findings[0]
	if d.Type != model.DiscrepancyMissingLocal || d.Symbol != "MSFT" {
		t.Fatalf("expected missing_local for MSFT, got %+v", d)
	}
	if d.Severity != model.SeverityWarning || !d.Resolved {
		t.Fatalf("missing_local must be a resolved warning, got %+v", d)
	}

	pos, err := (&repository.PositionRepository{}).WithDB(db).FindBySymbol(ctx, "MSFT")
	if err != nil || pos == nil {
		t.Fatalf("expected MSFT adopted into local book, got %+v err=%v", pos, err)
	}
	if pos.Quantity != 50 || pos.AvgPrice != 300 {
		t.Fatalf("adopted position has wrong values: %+v", pos)
	}

	if len(alerter.alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerter.alerts))
	}
}

func TestReconcileFlagsQuantityMismatch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedPosition(t, db, "AAPL", 100, 150)

	broker := &fakeBroker{positions: []model.BrokerPosition{
		{Symbol: "AAPL", Quantity: 90, AvgEntryPrice: 150},
	}}
	alerter := &recordingAlerter{}
	svc := NewService(db, broker, alerter, time.Minute, 0.0001)

	findings, err := svc.ReconcileOnce(ctx)
	if err != nil {
		t.Fatalf("expected reconciliation to succeed, got %v", err)
	}

	if len(findings) != 1 {
		t.Fatalf("expected 1 discrepancy, got %d", len(findings))
	}
	d := findings[0]
	if d.Type != model.DiscrepancyQuantityMismatch || d.Severity != model.SeverityCritical {
		t.Fatalf("expected critical quantity_mismatch, got %+v", d)
	}
	if d.LocalValue != 100 || d.BrokerValue != 90 {
		t.Fatalf("mismatch values wrong: %+v", d)
	}

	// The local book is not auto-corrected for mismatches.
	pos, _ := (&repository.PositionRepository{}).WithDB(db).FindBySymbol(ctx, "AAPL")
	if pos.Quantity != 100 {
		t.Fatalf("quantity_mismatch must not rewrite the local book, got %v", pos.Quantity)
	}
}

func TestReconcileFlagsPhantomLocalPosition(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedPosition(t, db, "TSLA", 25, 200)

	broker := &fakeBroker{}
	alerter := &recordingAlerter{}
	svc := NewService(db, broker, alerter, time.Minute, 0.0001)

	findings, err := svc.ReconcileOnce(ctx)
	if err != nil {
		t.Fatalf("expected reconciliation to succeed, got %v", err)
	}

	if len(findings) != 1 {
		t.Fatalf("expected 1 discrepancy, got %d", len(findings))
	}
	d := findings[0]
	if d.Type != model.DiscrepancyPhantomLocal || d.Severity != model.SeverityCritical {
		t.Fatalf("expected critical phantom_local, got %+v", d)
	}
	if d.Symbol != "TSLA" || d.LocalValue != 25 {
		t.Fatalf("phantom values wrong: %+v", d)
	}
}

func TestReconcileWithinToleranceIsClean(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedPosition(t, db, "AAPL", 100.00005, 150)

	broker := &fakeBroker{positions: []model.BrokerPosition{
		{Symbol: "AAPL", Quantity: 100, AvgEntryPrice: 150},
	}}
	svc := NewService(db, broker, &recordingAlerter{}, time.Minute, 0.0001)

	findings, err := svc.ReconcileOnce(ctx)
	if err != nil {
		t.Fatalf("expected reconciliation to succeed, got %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("expected clean pass within tolerance, got %+v", findings)
	}
}

func TestReconcileBrokerOutageReturnsError(t *testing.T) {
	db := newTestDB(t)

	broker := &fakeBroker{err: fmt.Errorf("venue unavailable")}
	svc := NewService(db, broker, &recordingAlerter{}, time.Minute, 0.0001)

	if _, err := svc.ReconcileOnce(context.Background()); err == nil {
		t.Fatal("expected error when broker positions cannot be fetched")
	}
}
