package connectors

import (
	"context"
	"errors"
	"testing"

	"orderexecutor/src/model"
)

type countingQuoteSource struct {
	inner *StaticQuoteSource
	calls int
}

func (c *countingQuoteSource) GetQuote(symbol string) (Quote, error) {
	c.calls++
	return c.inner.GetQuote(symbol)
}

func newTestQuotes() *countingQuoteSource {
	quotes := NewStaticQuoteSource()
	quotes.SetQuote("AAPL", 99.9, 100.1)
	return &countingQuoteSource{inner: quotes}
}

func TestSimConnectorFillsMarketOrder(t *testing.T) {
	quotes := newTestQuotes()
	sim := NewSimConnector(quotes, 10, 0, 100_000)

	var fills []model.OrderFill
	sim.SubscribeFills(func(f model.OrderFill) { fills = append(fills, f) })

	order := &model.Order{OrderID: "ord-1", Symbol: "AAPL", Side: model.ActionBuy, Quantity: 10, OrderType: model.OrderTypeMarket}
	brokerID, err := sim.SubmitOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if brokerID == "" {
		t.Fatal("expected a broker order id")
	}

	if len(fills) != 1 {
		t.Fatalf("expected one fill, got %d", len(fills))
	}
	fill := fills[0]
	if fill.Quantity != 10 {
		t.Errorf("expected full fill, got qty %v", fill.Quantity)
	}
	// ask 100.1 + 10bps slippage
	want := 100.1 + 100.1*0.001
	if fill.Price != want {
		t.Errorf("expected buy fill at %v, got %v", want, fill.Price)
	}

	status, err := sim.GetOrderStatus(context.Background(), brokerID)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if status != model.OrderStatusFilled {
		t.Errorf("expected FILLED, got %s", status)
	}

	positions, err := sim.GetPositions(context.Background())
	if err != nil {
		t.Fatalf("positions failed: %v", err)
	}
	if len(positions) != 1 || positions[0].Symbol != "AAPL" || positions[0].Quantity != 10 {
		t.Errorf("unexpected position book: %+v", positions)
	}
}

func TestSimConnectorDisconnectedRejectsWithoutQuoteCall(t *testing.T) {
	quotes := newTestQuotes()
	sim := NewSimConnector(quotes, 0, 0, 100_000)
	if err := sim.Disconnect(); err != nil {
		t.Fatalf("disconnect failed: %v", err)
	}

	order := &model.Order{OrderID: "ord-2", Symbol: "AAPL", Side: model.ActionBuy, Quantity: 1, OrderType: model.OrderTypeMarket}
	_, err := sim.SubmitOrder(context.Background(), order)

	var subErr *SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	if quotes.calls != 0 {
		t.Fatalf("expected no quote source calls while disconnected, got %d", quotes.calls)
	}
}

func TestSimConnectorRestingLimitOrderCancel(t *testing.T) {
	quotes := newTestQuotes()
	sim := NewSimConnector(quotes, 0, 0, 100_000)

	limit := 90.0 // not marketable against ask 100.1
	order := &model.Order{OrderID: "ord-3", Symbol: "AAPL", Side: model.ActionBuy, Quantity: 5, OrderType: model.OrderTypeLimit, LimitPrice: &limit}
	brokerID, err := sim.SubmitOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	status, _ := sim.GetOrderStatus(context.Background(), brokerID)
	if status != model.OrderStatusSubmitted {
		t.Fatalf("expected resting order to be SUBMITTED, got %s", status)
	}

	accepted, err := sim.CancelOrder(context.Background(), brokerID)
	if err != nil || !accepted {
		t.Fatalf("expected cancel to be accepted, got accepted=%v err=%v", accepted, err)
	}

	status, _ = sim.GetOrderStatus(context.Background(), brokerID)
	if status != model.OrderStatusCancelled {
		t.Errorf("expected CANCELLED, got %s", status)
	}

	// terminal orders refuse further cancels
	if _, err := sim.CancelOrder(context.Background(), brokerID); err == nil {
		t.Error("expected cancel of terminal order to fail")
	}
}

func TestSimConnectorSellReducesPositionAndCash(t *testing.T) {
	quotes := newTestQuotes()
	sim := NewSimConnector(quotes, 0, 0, 100_000)
	sim.SubscribeFills(func(model.OrderFill) {})

	buy := &model.Order{OrderID: "ord-4", Symbol: "AAPL", Side: model.ActionBuy, Quantity: 10, OrderType: model.OrderTypeMarket}
	if _, err := sim.SubmitOrder(context.Background(), buy); err != nil {
		t.Fatalf("buy failed: %v", err)
	}

	sell := &model.Order{OrderID: "ord-5", Symbol: "AAPL", Side: model.ActionSell, Quantity: 10, OrderType: model.OrderTypeMarket}
	if _, err := sim.SubmitOrder(context.Background(), sell); err != nil {
		t.Fatalf("sell failed: %v", err)
	}

	positions, _ := sim.GetPositions(context.Background())
	if len(positions) != 0 {
		t.Errorf("expected flat book after round trip, got %+v", positions)
	}

	account, err := sim.GetAccount(context.Background())
	if err != nil {
		t.Fatalf("account failed: %v", err)
	}
	// bought at ask 100.1, sold at bid 99.9, 10 shares
	wantCash := 100_000 - 100.1*10 + 99.9*10
	if account.Cash != wantCash {
		t.Errorf("expected cash %v, got %v", wantCash, account.Cash)
	}
}
