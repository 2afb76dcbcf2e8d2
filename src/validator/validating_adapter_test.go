package validator

import (
	"context"
	"errors"
	"testing"

	"orderexecutor/src/connectors"
	"orderexecutor/src/model"
)

func newSim() *connectors.SimConnector {
	quotes := connectors.NewStaticQuoteSource()
	quotes.SetQuote("AAPL", 99.9, 100.1)
	return connectors.NewSimConnector(quotes, 0, 0, 100_000)
}

func marketBuy(orderID string, qty float64) *model.Order {
	return &model.Order{OrderID: orderID, Symbol: "AAPL", Side: model.ActionBuy, Quantity: qty, OrderType: model.OrderTypeMarket}
}

// With limits above the order's size the decorator is transparent: the order
// ends in the same terminal state as a direct submission.
func TestValidatingAdapterTransparentForPassingOrders(t *testing.T) {
	direct := newSim()
	directID, err := direct.SubmitOrder(context.Background(), marketBuy("ord-d", 10))
	if err != nil {
		t.Fatalf("direct submit failed: %v", err)
	}
	directStatus, _ := direct.GetOrderStatus(context.Background(), directID)

	wrappedSim := newSim()
	wrapped := NewValidatingAdapter(wrappedSim, Options{MaxPositionSize: 100, MaxOrderValue: 1_000_000})
	wrappedID, err := wrapped.SubmitOrder(context.Background(), marketBuy("ord-w", 10))
	if err != nil {
		t.Fatalf("wrapped submit failed: %v", err)
	}
	wrappedStatus, _ := wrapped.GetOrderStatus(context.Background(), wrappedID)

	if directStatus != wrappedStatus {
		t.Fatalf("decorator changed terminal state: direct=%s wrapped=%s", directStatus, wrappedStatus)
	}
	if wrappedStatus != model.OrderStatusFilled {
		t.Errorf("expected FILLED, got %s", wrappedStatus)
	}
}

func TestValidatingAdapterPositionSizeLimit(t *testing.T) {
	sim := newSim()
	wrapped := NewValidatingAdapter(sim, Options{MaxPositionSize: 5})

	_, err := wrapped.SubmitOrder(context.Background(), marketBuy("ord-1", 10))
	var subErr *connectors.SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}

	// the inner venue never saw the order
	if _, statusErr := sim.GetOrderStatus(context.Background(), "SIM-1"); statusErr == nil {
		t.Fatal("expected inner venue to have no orders")
	}
}

func TestValidatingAdapterOrderValueLimit(t *testing.T) {
	wrapped := NewValidatingAdapter(newSim(), Options{
		MaxOrderValue: 500,
		RefPrice:      func(string) (float64, error) { return 100, nil },
	})

	if _, err := wrapped.SubmitOrder(context.Background(), marketBuy("ord-2", 10)); err == nil {
		t.Fatal("expected order value 1000 to be rejected against limit 500")
	}

	if _, err := wrapped.SubmitOrder(context.Background(), marketBuy("ord-3", 4)); err != nil {
		t.Fatalf("expected order value 400 to pass, got %v", err)
	}
}

func TestValidatingAdapterConfirmationRequired(t *testing.T) {
	wrapped := NewValidatingAdapter(newSim(), Options{RequireConfirmation: true})

	if _, err := wrapped.SubmitOrder(context.Background(), marketBuy("ord-4", 1)); err == nil {
		t.Fatal("expected rejection before session confirmation")
	}

	wrapped.Confirm()
	if _, err := wrapped.SubmitOrder(context.Background(), marketBuy("ord-5", 1)); err != nil {
		t.Fatalf("expected submission after confirmation, got %v", err)
	}
}

func TestValidatingAdapterHalt(t *testing.T) {
	wrapped := NewValidatingAdapter(newSim(), Options{
		Halted: func() (bool, string) { return true, "daily loss limit" },
	})

	_, err := wrapped.SubmitOrder(context.Background(), marketBuy("ord-6", 1))
	if err == nil {
		t.Fatal("expected rejection while halted")
	}
}

type lookupVenue struct {
	*connectors.SimConnector
}

func (l *lookupVenue) FindOrderByClientID(ctx context.Context, clientOrderID string) (string, string, error) {
	return "NX-42", model.OrderStatusFilled, nil
}

func TestValidatingAdapterForwardsOrderLookup(t *testing.T) {
	wrapped := NewValidatingAdapter(&lookupVenue{newSim()}, Options{})

	brokerOrderID, status, err := wrapped.FindOrderByClientID(context.Background(), "client-1")
	if err != nil {
		t.Fatalf("expected lookup to delegate to the inner venue, got %v", err)
	}
	if brokerOrderID != "NX-42" || status != model.OrderStatusFilled {
		t.Errorf("unexpected lookup result %s/%s", brokerOrderID, status)
	}

	// A venue without lookup support must be reported as such, not as an
	// order the venue never saw.
	plain := NewValidatingAdapter(newSim(), Options{})
	if _, _, err := plain.FindOrderByClientID(context.Background(), "client-1"); !errors.Is(err, connectors.ErrOrderLookupUnsupported) {
		t.Fatalf("expected ErrOrderLookupUnsupported, got %v", err)
	}
}

// Decorators must stack without referencing concrete venue types.
func TestValidatingAdapterComposes(t *testing.T) {
	inner := NewValidatingAdapter(newSim(), Options{MaxPositionSize: 100})
	outer := NewValidatingAdapter(inner, Options{MaxOrderValue: 1_000_000})

	if _, err := outer.SubmitOrder(context.Background(), marketBuy("ord-7", 10)); err != nil {
		t.Fatalf("expected stacked decorators to pass the order through, got %v", err)
	}

	positions, err := outer.GetPositions(context.Background())
	if err != nil {
		t.Fatalf("expected query extension to delegate through both layers, got %v", err)
	}
	if len(positions) != 1 {
		t.Errorf("expected one position after the fill, got %d", len(positions))
	}
}
