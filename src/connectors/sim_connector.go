package connectors

import (
	"context"
	"fmt"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"orderexecutor/src/model"
)

// SimConnector is the paper-trading venue. It fills orders synchronously
// against a QuoteSource with simulated slippage and commission, and keeps its
// own position book and account so it also satisfies QueryExtension. It is a
// full BrokerAdapter, not a special case: callers cannot tell it apart from a
// live venue.
type SimConnector struct {
	quotes        QuoteSource
	slippageBps   int64
	commissionBps int64
	startingCash  float64

	mu        sync.Mutex
	connected bool
	cb        FillCallback
	orderSeq  int64
	fillSeq   int64
	orders    map[string]*simOrder
	positions map[string]*model.BrokerPosition
	cash      float64
}

type simOrder struct {
	order     model.Order
	status    string
	filledQty float64
	fillPrice float64
}

func NewSimConnector(quotes QuoteSource, slippageBps, commissionBps int64, startingCash float64) *SimConnector {
	if startingCash <= 0 {
		startingCash = 100_000
	}
	return &SimConnector{
		quotes:        quotes,
		slippageBps:   slippageBps,
		commissionBps: commissionBps,
		startingCash:  startingCash,
		connected:     true,
		orders:        make(map[string]*simOrder),
		positions:     make(map[string]*model.BrokerPosition),
		cash:          startingCash,
	}
}

func (s *SimConnector) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

func (s *SimConnector) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

func (s *SimConnector) SubscribeFills(cb FillCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cb = cb
}

// SubmitOrder fills market orders and marketable limit orders immediately.
// Non-marketable limit orders stay SUBMITTED until cancelled.
func (s *SimConnector) SubmitOrder(ctx context.Context, order *model.Order) (string, error) {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return "", &SubmissionError{Reason: "simulated venue is disconnected"}
	}
	if order.Quantity <= 0 {
		s.mu.Unlock()
		return "", &SubmissionError{Reason: "quantity must be greater than zero"}
	}
	if order.OrderType == model.OrderTypeLimit && order.LimitPrice == nil {
		s.mu.Unlock()
		return "", &SubmissionError{Reason: "limit order requires a limit price"}
	}
	s.orderSeq++
	brokerOrderID := fmt.Sprintf("SIM-%d", s.orderSeq)
	s.mu.Unlock()

	// Quote lookup happens outside the lock: with a live source this is a
	// network call.
	quote, err := s.quotes.GetQuote(order.Symbol)
	if err != nil {
		return "", &SubmissionError{Reason: "no quote for symbol", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fillPrice := s.fillPriceFor(order, quote)
	so := &simOrder{order: *order, status: model.OrderStatusSubmitted}
	s.orders[brokerOrderID] = so

	if order.OrderType == model.OrderTypeLimit && !marketable(order, quote) {
		logger.WithFields(logger.Fields{
			"broker_order_id": brokerOrderID,
			"symbol":          order.Symbol,
			"limit_price":     *order.LimitPrice,
		}).Info("simulated limit order resting, not marketable")
		return brokerOrderID, nil
	}

	s.fillSeq++
	fill := model.OrderFill{
		FillID:    fmt.Sprintf("SIM-FILL-%d", s.fillSeq),
		OrderID:   brokerOrderID,
		Symbol:    order.Symbol,
		Side:      order.Side,
		Quantity:  order.Quantity,
		Price:     fillPrice,
		Timestamp: time.Now().UTC(),
	}

	so.status = model.OrderStatusFilled
	so.filledQty = order.Quantity
	so.fillPrice = fillPrice
	s.applyFillLocked(fill)

	cb := s.cb
	if cb != nil {
		// Deliver synchronously while still on the submit path: the sim venue
		// has no transport thread to bridge.
		s.mu.Unlock()
		cb(fill)
		s.mu.Lock()
	}

	logger.WithFields(logger.Fields{
		"broker_order_id": brokerOrderID,
		"symbol":          order.Symbol,
		"side":            order.Side,
		"qty":             order.Quantity,
		"price":           fillPrice,
	}).Info("simulated order filled")

	return brokerOrderID, nil
}

func (s *SimConnector) CancelOrder(ctx context.Context, brokerOrderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	so, ok := s.orders[brokerOrderID]
	if !ok {
		return false, &CancelError{BrokerOrderID: brokerOrderID, Reason: "unknown order"}
	}
	if model.IsTerminalOrderStatus(so.status) {
		return false, &CancelError{BrokerOrderID: brokerOrderID, Reason: fmt.Sprintf("order already %s", so.status)}
	}

	so.status = model.OrderStatusCancelled
	return true, nil
}

func (s *SimConnector) GetOrderStatus(ctx context.Context, brokerOrderID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	so, ok := s.orders[brokerOrderID]
	if !ok {
		return "", fmt.Errorf("unknown simulated order %s", brokerOrderID)
	}
	return so.status, nil
}

func (s *SimConnector) GetPositions(ctx context.Context) ([]model.BrokerPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.BrokerPosition, 0, len(s.positions))
	for _, pos := range s.positions {
		out = append(out, *pos)
	}
	return out, nil
}

func (s *SimConnector) GetAccount(ctx context.Context) (model.BrokerAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	equity := s.cash
	for _, pos := range s.positions {
		equity += pos.MarketValue
	}

	return model.BrokerAccount{
		AccountID:   "SIM",
		Equity:      equity,
		Cash:        s.cash,
		BuyingPower: s.cash,
		Currency:    "USD",
	}, nil
}

// fillPriceFor applies slippage in basis points: buys fill higher, sells
// fill lower.
func (s *SimConnector) fillPriceFor(order *model.Order, quote Quote) float64 {
	base := quote.Ask
	if order.Side == model.ActionSell {
		base = quote.Bid
	}
	if base == 0 {
		base = quote.Last
	}

	slip := base * float64(s.slippageBps) / 10000
	if order.Side == model.ActionBuy {
		return base + slip
	}
	return base - slip
}

func marketable(order *model.Order, quote Quote) bool {
	if order.OrderType != model.OrderTypeLimit {
		return true
	}
	if order.Side == model.ActionBuy {
		return *order.LimitPrice >= quote.Ask
	}
	return *order.LimitPrice <= quote.Bid
}

// applyFillLocked updates the venue-side position book and cash. Caller holds
// the lock.
func (s *SimConnector) applyFillLocked(fill model.OrderFill) {
	commission := fill.Price * fill.Quantity * float64(s.commissionBps) / 10000

	pos, ok := s.positions[fill.Symbol]
	if !ok {
		pos = &model.BrokerPosition{Symbol: fill.Symbol}
		s.positions[fill.Symbol] = pos
	}

	if fill.Side == model.ActionBuy {
		total := pos.AvgEntryPrice*pos.Quantity + fill.Price*fill.Quantity
		pos.Quantity += fill.Quantity
		if pos.Quantity != 0 {
			pos.AvgEntryPrice = total / pos.Quantity
		}
		s.cash -= fill.Price*fill.Quantity + commission
	} else {
		pos.Quantity -= fill.Quantity
		s.cash += fill.Price*fill.Quantity - commission
	}
	pos.MarketValue = pos.Quantity * fill.Price

	if pos.Quantity == 0 {
		delete(s.positions, fill.Symbol)
	}
}
