package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"orderexecutor/src/model"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	dialector := postgres.New(postgres.Config{
		DSN:                  "sqlmock_db_0",
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	})

	gdb, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		sqlDB.Close()
		t.Fatalf("failed to open gorm DB with sqlmock: %v", err)
	}

	return gdb, mock
}

func TestOrderRepositoryQueries(t *testing.T) {
	db, mock := newMockDB(t)
	repo := (&OrderRepository{}).WithDB(db)

	createdAt := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)

	order := &model.Order{
		OrderID:    "ord-abc-123",
		StrategyID: "momentum_v2",
		Symbol:     "AAPL",
		Side:       model.ActionBuy,
		Quantity:   100,
		OrderType:  model.OrderTypeMarket,
		Status:     model.OrderStatusPending,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "orders" (`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	if err := repo.Create(context.Background(), order); err != nil {
		t.Fatalf("expected create to succeed, got %v", err)
	}

	row := sqlmock.NewRows([]string{"id", "order_id", "strategy_id", "symbol", "side", "quantity", "order_type", "status", "filled_qty", "avg_fill_price", "created_at", "updated_at"}).
		AddRow(1, order.OrderID, order.StrategyID, order.Symbol, order.Side, order.Quantity, order.OrderType, order.Status, 0.0, 0.0, createdAt, createdAt)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "orders" WHERE order_id = $1 ORDER BY "orders"."id" LIMIT $2`)).
		WithArgs(order.OrderID, 1).
		WillReturnRows(row)

	found, err := repo.FindByOrderID(context.Background(), order.OrderID)
	if err != nil || found == nil {
		t.Fatalf("expected to find record by client order ID, got %+v err=%v", found, err)
	}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "orders" WHERE order_id = $1 ORDER BY "orders"."id" LIMIT $2`)).
		WithArgs("ord-missing", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	missing, err := repo.FindByOrderID(context.Background(), "ord-missing")
	if err != nil {
		t.Fatalf("expected nil error for missing order, got %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil order for missing record, got %+v", missing)
	}

	openRows := sqlmock.NewRows([]string{"id", "order_id", "status"}).
		AddRow(1, "ord-abc-123", model.OrderStatusSubmitted).
		AddRow(2, "ord-def-456", model.OrderStatusPartialFill)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "orders" WHERE status IN ($1,$2,$3) ORDER BY id ASC`)).
		WithArgs(model.OrderStatusPending, model.OrderStatusSubmitted, model.OrderStatusPartialFill).
		WillReturnRows(openRows)

	open, err := repo.FindOpen(context.Background())
	if err != nil {
		t.Fatalf("expected FindOpen to succeed, got %v", err)
	}
	if len(open) != 2 {
		t.Fatalf("expected 2 open orders, got %d", len(open))
	}

	latestRows := sqlmock.NewRows([]string{"id"}).AddRow(2).AddRow(1)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "orders" ORDER BY id DESC LIMIT $1`)).
		WithArgs(20).
		WillReturnRows(latestRows)

	if _, err := repo.FindLatest(context.Background(), 0); err != nil {
		t.Fatalf("expected FindLatest to succeed, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestWALRepositoryAppendAndComplete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := (&WALRepository{}).WithDB(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "wal_entries" (`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectCommit()

	entry, err := repo.Append(context.Background(), model.WALOpSubmitOrder, `{"order_id":"ord-abc-123"}`)
	if err != nil {
		t.Fatalf("expected append to succeed, got %v", err)
	}
	if entry.Status != model.WALStatusPending {
		t.Fatalf("expected appended entry to be pending, got %q", entry.Status)
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "wal_entries" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.MarkComplete(context.Background(), entry.ID); err != nil {
		t.Fatalf("expected mark complete to succeed, got %v", err)
	}

	pendingRows := sqlmock.NewRows([]string{"id", "operation", "payload", "status"}).
		AddRow(9, model.WALOpSubmitOrder, `{"order_id":"ord-xyz"}`, model.WALStatusPending)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "wal_entries" WHERE status = $1 ORDER BY id ASC`)).
		WithArgs(model.WALStatusPending).
		WillReturnRows(pendingRows)

	pending, err := repo.FindPending(context.Background())
	if err != nil {
		t.Fatalf("expected FindPending to succeed, got %v", err)
	}
	if len(pending) != 1 || pending[0].Operation != model.WALOpSubmitOrder {
		t.Fatalf("unexpected pending entries: %+v", pending)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestFillRepositoryExistsByFillID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := (&FillRepository{}).WithDB(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id" FROM "order_fills" WHERE fill_id = $1 ORDER BY "order_fills"."id" LIMIT $2`)).
		WithArgs("FILL-1", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	exists, err := repo.ExistsByFillID(context.Background(), "FILL-1")
	if err != nil {
		t.Fatalf("expected existence check to succeed, got %v", err)
	}
	if !exists {
		t.Fatal("expected fill FILL-1 to exist")
	}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id" FROM "order_fills" WHERE fill_id = $1 ORDER BY "order_fills"."id" LIMIT $2`)).
		WithArgs("FILL-2", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	exists, err = repo.ExistsByFillID(context.Background(), "FILL-2")
	if err != nil {
		t.Fatalf("expected existence check to succeed, got %v", err)
	}
	if exists {
		t.Fatal("expected fill FILL-2 to be unknown")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestPositionRepositoryApplyFill(t *testing.T) {
	db, mock := newMockDB(t)
	repo := (&PositionRepository{}).WithDB(db)

	t.Run("buy opens a new position", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "positions" WHERE symbol = $1 ORDER BY "positions"."id" LIMIT $2`)).
			WithArgs("AAPL", 1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "positions" (`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
		mock.ExpectCommit()

		fill := &model.OrderFill{
			FillID:   "FILL-10",
			Symbol:   "AAPL",
			Side:     model.ActionBuy,
			Quantity: 100,
			Price:    150,
		}
		if err := repo.ApplyFill(context.Background(), "momentum_v2", fill); err != nil {
			t.Fatalf("expected apply fill to succeed, got %v", err)
		}
	})

	t.Run("sell reduces an existing position", func(t *testing.T) {
		existing := sqlmock.NewRows([]string{"id", "symbol", "quantity", "avg_price", "strategy_id"}).
			AddRow(1, "AAPL", 100.0, 150.0, "momentum_v2")

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "positions" WHERE symbol = $1 ORDER BY "positions"."id" LIMIT $2`)).
			WithArgs("AAPL", 1).
			WillReturnRows(existing)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE "positions" SET`)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		fill := &model.OrderFill{
			FillID:   "FILL-11",
			Symbol:   "AAPL",
			Side:     model.ActionSell,
			Quantity: 40,
			Price:    155,
		}
		if err := repo.ApplyFill(context.Background(), "momentum_v2", fill); err != nil {
			t.Fatalf("expected apply fill to succeed, got %v", err)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}
