package executors

import (
	"context"
	"sync"
	"testing"
	"time"

	"orderexecutor/src/model"
)

type countingExecutor struct {
	mu     sync.Mutex
	orders []model.Signal
}

func (c *countingExecutor) Execute(ctx context.Context, sig model.Signal) (*model.Order, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orders = append(c.orders, sig)
	return &model.Order{OrderID: "ord-" + sig.Symbol, Status: model.OrderStatusFilled}, nil
}

func (c *countingExecutor) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.orders)
}

func TestStartLoopExecutesQueuedSignals(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan model.Signal, 8)
	executor := &countingExecutor{}

	done := make(chan struct{})
	go func() {
		_ = StartLoop(ctx, signals, executor)
		close(done)
	}()

	signals <- model.Signal{StrategyID: "s1", Symbol: "AAPL", Action: model.ActionBuy, Quantity: 1, OrderType: model.OrderTypeMarket}
	signals <- model.Signal{StrategyID: "s1", Symbol: "MSFT", Action: model.ActionSell, Quantity: 2, OrderType: model.OrderTypeMarket}

	deadline := time.After(2 * time.Second)
	for executor.count() < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected 2 executed signals, got %d", executor.count())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop on context cancellation")
	}
}

func TestStartLoopStopsWhenChannelCloses(t *testing.T) {
	signals := make(chan model.Signal)
	close(signals)

	done := make(chan struct{})
	go func() {
		_ = StartLoop(context.Background(), signals, &countingExecutor{})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop on channel close")
	}
}
