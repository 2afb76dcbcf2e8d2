package connectors

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"orderexecutor/src/mapper"
	"orderexecutor/src/model"
)

const (
	nexusEventBuffer       = 256
	nexusReconnectAttempts = 3
	nexusReconnectBase     = 1 * time.Second
	nexusRateLimitAttempts = 3
	nexusRateLimitBase     = 500 * time.Millisecond
	nexusSeenFillCap       = 4096
)

// NexusConnector bridges the synchronous, callback-driven Nexus SDK into the
// BrokerAdapter contract. Vendor callbacks never touch adapter state: they
// enqueue onto a bounded channel that a single pump goroutine drains. All
// stateful processing (status mapping, fill deduplication, subscriber
// callback) happens on the pump. That channel is the only crossing point
// between the vendor's goroutine and the adapter.
type NexusConnector struct {
	session   NexusSession
	accountID string
	sanitize  func(string) string

	mu        sync.Mutex
	connected bool
	cb        FillCallback
	// seenFills dedups redelivered fill ids, bounded to nexusSeenFillCap with
	// oldest-first eviction tracked by seenOrder. The lifecycle layer dedups
	// durably by fill_id; this set only absorbs transport redelivery bursts.
	seenFills map[string]struct{}
	seenOrder []string

	// events and done belong to the current connection; Connect replaces them
	// so the adapter can be reconnected after Disconnect.
	events chan NexusEvent
	done   chan struct{}
	wg     sync.WaitGroup
}

func NewNexusConnector(session NexusSession, accountID string, sanitize func(string) string) *NexusConnector {
	if sanitize == nil {
		sanitize = func(s string) string { return s }
	}
	return &NexusConnector{
		session:   session,
		accountID: accountID,
		sanitize:  sanitize,
		seenFills: make(map[string]struct{}),
		events:    make(chan NexusEvent, nexusEventBuffer),
		done:      make(chan struct{}),
	}
}

// Connect opens the vendor session and starts the pump. A disconnected
// adapter can be connected again: each Connect starts a fresh pump over fresh
// channels.
func (n *NexusConnector) Connect(ctx context.Context) error {
	n.mu.Lock()
	n.events = make(chan NexusEvent, nexusEventBuffer)
	n.done = make(chan struct{})
	events, done := n.events, n.done
	n.mu.Unlock()

	n.session.SetEventHandler(n.enqueue)

	if err := n.session.Open(n.accountID); err != nil {
		return &ConnectionError{Venue: "nexus", Err: errors.New(n.sanitize(err.Error()))}
	}

	n.mu.Lock()
	n.connected = true
	n.mu.Unlock()

	n.wg.Add(1)
	go n.pump(events, done)

	logger.WithField("account_id", n.accountID).Info("nexus session connected")
	return nil
}

// Disconnect tears the session down and stops the pump.
func (n *NexusConnector) Disconnect() error {
	n.mu.Lock()
	if !n.connected {
		n.mu.Unlock()
		return nil
	}
	n.connected = false
	close(n.done)
	n.mu.Unlock()

	err := n.session.Close()
	n.wg.Wait()

	if err != nil {
		return &ConnectionError{Venue: "nexus", Err: errors.New(n.sanitize(err.Error()))}
	}
	return nil
}

func (n *NexusConnector) SubscribeFills(cb FillCallback) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cb = cb
}

// enqueue runs on the vendor's goroutine. It only hands the event to the
// current connection's channel; it must never mutate adapter state.
func (n *NexusConnector) enqueue(ev NexusEvent) {
	n.mu.Lock()
	events, done := n.events, n.done
	n.mu.Unlock()

	select {
	case events <- ev:
	case <-done:
	}
}

// pump is the single consumer of the event channel. Fills for a given order
// reach the subscriber in the order they are dequeued.
func (n *NexusConnector) pump(events <-chan NexusEvent, done <-chan struct{}) {
	defer n.wg.Done()

	for {
		select {
		case <-done:
			return
		case ev := <-events:
			switch ev.Type {
			case NexusEventFill:
				n.handleFill(ev.Fill)
			case NexusEventOrderUpdate:
				if ev.OrderUpdate != nil {
					logger.WithFields(logger.Fields{
						"vendor_order_id": ev.OrderUpdate.OrderID,
						"status":          mapper.MapNexusStatus(ev.OrderUpdate.Status),
					}).Debug("nexus order update")
				}
			case NexusEventDisconnect:
				n.handleDisconnect(done)
			default:
				logger.WithField("event_type", ev.Type).Warn("unknown nexus event type dropped")
			}
		}
	}
}

func (n *NexusConnector) handleFill(f *NexusFill) {
	if f == nil {
		return
	}

	n.mu.Lock()
	if _, seen := n.seenFills[f.FillID]; seen {
		n.mu.Unlock()
		logger.WithField("fill_id", f.FillID).Debug("duplicate nexus fill dropped")
		return
	}
	n.seenFills[f.FillID] = struct{}{}
	n.seenOrder = append(n.seenOrder, f.FillID)
	if len(n.seenOrder) > nexusSeenFillCap {
		delete(n.seenFills, n.seenOrder[0])
		n.seenOrder = n.seenOrder[1:]
	}
	cb := n.cb
	n.mu.Unlock()

	if cb == nil {
		logger.WithField("fill_id", f.FillID).Warn("nexus fill received with no subscriber")
		return
	}

	cb(model.OrderFill{
		FillID:    f.FillID,
		OrderID:   f.OrderID,
		Symbol:    f.Symbol,
		Side:      f.Side,
		Quantity:  f.Quantity,
		Price:     f.Price,
		Timestamp: time.UnixMilli(f.Timestamp).UTC(),
	})
}

// handleDisconnect marks the adapter unreachable so SubmitOrder fails fast,
// then tries to reconnect with exponential backoff. On exhaustion it logs and
// stays disconnected; it never panics out of the pump.
func (n *NexusConnector) handleDisconnect(done <-chan struct{}) {
	n.mu.Lock()
	n.connected = false
	n.mu.Unlock()

	logger.Warn("nexus session lost, attempting reconnect")

	delay := nexusReconnectBase
	for attempt := 1; attempt <= nexusReconnectAttempts; attempt++ {
		select {
		case <-done:
			return
		case <-time.After(delay):
		}

		err := n.session.Open(n.accountID)
		if err == nil {
			n.mu.Lock()
			n.connected = true
			n.mu.Unlock()
			logger.WithField("attempt", attempt).Info("nexus session reconnected")
			return
		}

		logger.WithError(errors.New(n.sanitize(err.Error()))).
			WithField("attempt", attempt).
			Error("nexus reconnect attempt failed")
		delay *= 2
	}

	logger.Error("nexus reconnect attempts exhausted, adapter stays unreachable")
}

// SubmitOrder rejects locally when disconnected, before any vendor call.
func (n *NexusConnector) SubmitOrder(ctx context.Context, order *model.Order) (string, error) {
	n.mu.Lock()
	connected := n.connected
	n.mu.Unlock()

	if !connected {
		return "", &SubmissionError{Reason: "nexus adapter is disconnected"}
	}
	if order.Quantity <= 0 {
		return "", &SubmissionError{Reason: "quantity must be greater than zero"}
	}
	if order.OrderType == model.OrderTypeLimit && order.LimitPrice == nil {
		return "", &SubmissionError{Reason: "limit order requires a limit price"}
	}

	req := NexusOrderRequest{
		ClientOrderID: order.OrderID,
		Symbol:        order.Symbol,
		Side:          order.Side,
		Type:          order.OrderType,
		Quantity:      order.Quantity,
	}
	if order.LimitPrice != nil {
		req.LimitPrice = *order.LimitPrice
	}

	var ack NexusOrderAck
	err := n.callVendor(ctx, func() error {
		var callErr error
		ack, callErr = n.session.PlaceOrder(req)
		return callErr
	})
	if err != nil {
		return "", &SubmissionError{Reason: "venue rejected order", Err: errors.New(n.sanitize(err.Error()))}
	}

	return ack.OrderID, nil
}

func (n *NexusConnector) CancelOrder(ctx context.Context, brokerOrderID string) (bool, error) {
	err := n.callVendor(ctx, func() error {
		return n.session.CancelOrder(brokerOrderID)
	})
	if err != nil {
		return false, &CancelError{BrokerOrderID: brokerOrderID, Reason: n.sanitize(err.Error())}
	}
	return true, nil
}

func (n *NexusConnector) GetOrderStatus(ctx context.Context, brokerOrderID string) (string, error) {
	var vendorStatus string
	err := n.callVendor(ctx, func() error {
		var callErr error
		vendorStatus, callErr = n.session.OrderStatus(brokerOrderID)
		return callErr
	})
	if err != nil {
		return "", fmt.Errorf("nexus order status: %s", n.sanitize(err.Error()))
	}
	return mapper.MapNexusStatus(vendorStatus), nil
}

// FindOrderByClientID resolves an order by the internal client order id. Used
// by WAL replay to learn what happened to a submission whose outcome was lost.
func (n *NexusConnector) FindOrderByClientID(ctx context.Context, clientOrderID string) (string, string, error) {
	var vendorOrderID, vendorStatus string
	err := n.callVendor(ctx, func() error {
		var callErr error
		vendorOrderID, vendorStatus, callErr = n.session.OrderStatusByClientID(clientOrderID)
		return callErr
	})
	if err != nil {
		return "", "", fmt.Errorf("nexus order lookup: %s", n.sanitize(err.Error()))
	}
	return vendorOrderID, mapper.MapNexusStatus(vendorStatus), nil
}

func (n *NexusConnector) GetPositions(ctx context.Context) ([]model.BrokerPosition, error) {
	var raw []NexusPosition
	err := n.callVendor(ctx, func() error {
		var callErr error
		raw, callErr = n.session.Positions()
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("nexus positions: %s", n.sanitize(err.Error()))
	}

	positions := make([]model.BrokerPosition, 0, len(raw))
	for _, p := range raw {
		positions = append(positions, model.BrokerPosition{
			Symbol:        p.Symbol,
			Quantity:      p.Quantity,
			AvgEntryPrice: p.AvgEntryPrice,
			MarketValue:   p.MarketValue,
			UnrealizedPnl: p.UnrealizedPnl,
		})
	}
	return positions, nil
}

func (n *NexusConnector) GetAccount(ctx context.Context) (model.BrokerAccount, error) {
	var raw NexusAccount
	err := n.callVendor(ctx, func() error {
		var callErr error
		raw, callErr = n.session.Account()
		return callErr
	})
	if err != nil {
		return model.BrokerAccount{}, fmt.Errorf("nexus account: %s", n.sanitize(err.Error()))
	}

	return model.BrokerAccount{
		AccountID:   raw.AccountID,
		Equity:      raw.Equity,
		Cash:        raw.Cash,
		BuyingPower: raw.BuyingPower,
		Currency:    raw.Currency,
	}, nil
}

// callVendor runs a blocking vendor call on its own goroutine so the caller's
// context bounds it, and retries rate-limited calls with exponential backoff
// before surfacing the error. A timed-out call is a failure, never a success.
func (n *NexusConnector) callVendor(ctx context.Context, fn func() error) error {
	delay := nexusRateLimitBase

	for attempt := 1; ; attempt++ {
		errCh := make(chan error, 1)
		go func() { errCh <- fn() }()

		var err error
		select {
		case <-ctx.Done():
			return &ConnectionError{Venue: "nexus", Err: ctx.Err()}
		case err = <-errCh:
		}

		var rateErr *RateLimitError
		if err == nil || !errors.As(err, &rateErr) {
			return err
		}
		if attempt >= nexusRateLimitAttempts {
			return err
		}

		logger.WithFields(logger.Fields{
			"attempt": attempt,
			"delay":   delay.String(),
		}).Warn("nexus rate limit hit, backing off")

		select {
		case <-ctx.Done():
			return &ConnectionError{Venue: "nexus", Err: ctx.Err()}
		case <-time.After(delay):
		}
		delay *= 2
	}
}
