package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"orderexecutor/src/connectors"
	"orderexecutor/src/model"
	"orderexecutor/src/repository"
	"orderexecutor/src/risk"
)

// FillListener is notified after a fill has been durably applied to its order.
type FillListener func(order model.Order, fill model.OrderFill)

// walPayload is the JSON body of a WAL entry.
type walPayload struct {
	OrderID       string  `json:"order_id"`
	BrokerOrderID string  `json:"broker_order_id,omitempty"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	Quantity      float64 `json:"quantity"`
}

// Manager owns the order lifecycle: signal intake through the risk gate, WAL
// protected submission, fill application and cancellation. All status writes
// go through the state machine in model; per-order locking serializes
// submit, cancel and fill processing for the same order.
type Manager struct {
	db       *gorm.DB
	adapter  connectors.BrokerAdapter
	gate     *risk.Gate
	listener FillListener

	orders     *repository.OrderRepository
	wal        *repository.WALRepository
	fills      *repository.FillRepository
	positions  *repository.PositionRepository
	exceptions *repository.ExceptionRepository

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	// Fills that arrived before their order's broker id was persisted. Keyed
	// by venue order id; drained at the end of Execute.
	early map[string][]model.OrderFill
}

func NewManager(db *gorm.DB, adapter connectors.BrokerAdapter, gate *risk.Gate, listener FillListener) *Manager {
	m := &Manager{
		db:         db,
		adapter:    adapter,
		gate:       gate,
		listener:   listener,
		orders:     (&repository.OrderRepository{}).WithDB(db),
		wal:        (&repository.WALRepository{}).WithDB(db),
		fills:      (&repository.FillRepository{}).WithDB(db),
		positions:  (&repository.PositionRepository{}).WithDB(db),
		exceptions: (&repository.ExceptionRepository{}).WithDB(db),
		locks:      make(map[string]*sync.Mutex),
		early:      make(map[string][]model.OrderFill),
	}
	adapter.SubscribeFills(m.OnFill)
	return m
}

// lockOrder takes the per-order mutex and returns its unlock func.
func (m *Manager) lockOrder(key string) func() {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Execute runs a signal through the full chain: persist PENDING, evaluate the
// risk gate, append submission intent to the WAL, submit to the venue, then
// persist the venue ack and complete the WAL entry in one transaction. The
// returned order carries the final status; a rejection is not an error.
func (m *Manager) Execute(ctx context.Context, sig model.Signal) (*model.Order, error) {
	if err := sig.Validate(); err != nil {
		return nil, err
	}

	order := &model.Order{
		OrderID:    uuid.NewString(),
		StrategyID: sig.StrategyID,
		Symbol:     sig.Symbol,
		Side:       sig.Action,
		Quantity:   sig.Quantity,
		OrderType:  sig.OrderType,
		LimitPrice: sig.LimitPrice,
		Status:     model.OrderStatusPending,
	}

	unlock := m.lockOrder(order.OrderID)
	defer unlock()

	if err := m.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("persisting order: %w", err)
	}

	verdict := m.gate.Evaluate(ctx, sig)
	if !verdict.Approved {
		order.Status = model.OrderStatusRejected
		order.ErrorMessage = verdict.Reason
		if err := m.orders.Save(ctx, order); err != nil {
			return nil, fmt.Errorf("persisting rejection: %w", err)
		}
		return order, nil
	}

	payload, err := json.Marshal(walPayload{
		OrderID:  order.OrderID,
		Symbol:   order.Symbol,
		Side:     order.Side,
		Quantity: order.Quantity,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding wal payload: %w", err)
	}

	entry, err := m.wal.Append(ctx, model.WALOpSubmitOrder, string(payload))
	if err != nil {
		return nil, fmt.Errorf("appending wal entry: %w", err)
	}

	brokerOrderID, err := m.adapter.SubmitOrder(ctx, order)
	if err != nil {
		m.capture(ctx, "Execute", err)

		order.Status = model.OrderStatusRejected
		order.ErrorMessage = err.Error()
		if saveErr := m.orders.Save(ctx, order); saveErr != nil {
			return nil, fmt.Errorf("persisting venue rejection: %w", saveErr)
		}
		if walErr := m.wal.MarkComplete(ctx, entry.ID); walErr != nil {
			return nil, fmt.Errorf("completing wal entry: %w", walErr)
		}
		return order, err
	}

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order.BrokerOrderID = &brokerOrderID
		order.Status = model.OrderStatusSubmitted
		if err := m.orders.WithDB(tx).Save(ctx, order); err != nil {
			return err
		}
		return m.wal.WithDB(tx).MarkComplete(ctx, entry.ID)
	})
	if err != nil {
		m.discardEarlyFills(brokerOrderID)
		return nil, fmt.Errorf("persisting venue ack: %w", err)
	}

	logger.WithFields(logger.Fields{
		"order_id":        order.OrderID,
		"broker_order_id": brokerOrderID,
		"symbol":          order.Symbol,
		"side":            order.Side,
		"qty":             order.Quantity,
	}).Info("order submitted")

	m.drainEarlyFills(ctx, order, brokerOrderID)

	return order, nil
}

// OnFill is the single fill callback registered with the venue adapter. A
// fill whose order is not yet persisted with its broker id is buffered and
// applied when Execute finishes the ack transaction.
func (m *Manager) OnFill(fill model.OrderFill) {
	ctx := context.Background()

	order, err := m.orders.FindByBrokerOrderID(ctx, fill.OrderID)
	if err != nil {
		m.capture(ctx, "OnFill", err)
		return
	}
	if order == nil {
		m.mu.Lock()
		m.early[fill.OrderID] = append(m.early[fill.OrderID], fill)
		m.mu.Unlock()

		logger.WithFields(logger.Fields{
			"broker_order_id": fill.OrderID,
			"fill_id":         fill.FillID,
		}).Debug("fill arrived before venue ack was persisted, buffering")
		return
	}

	unlock := m.lockOrder(order.OrderID)
	defer unlock()

	if err := m.applyFill(ctx, order, fill); err != nil {
		m.capture(ctx, "OnFill", err)
	}
}

// drainEarlyFills applies any fills that raced ahead of the submit ack.
// Caller already holds the order lock.
func (m *Manager) drainEarlyFills(ctx context.Context, order *model.Order, brokerOrderID string) {
	m.mu.Lock()
	buffered := m.early[brokerOrderID]
	delete(m.early, brokerOrderID)
	m.mu.Unlock()

	for _, fill := range buffered {
		if err := m.applyFill(ctx, order, fill); err != nil {
			m.capture(ctx, "drainEarlyFills", err)
		}
	}
}

// discardEarlyFills drops buffered fills for an order whose ack could not be
// persisted. The order is resolved against venue truth by WAL replay, which
// re-fetches its fills through the venue lookup rather than this buffer.
func (m *Manager) discardEarlyFills(brokerOrderID string) {
	m.mu.Lock()
	buffered := m.early[brokerOrderID]
	delete(m.early, brokerOrderID)
	m.mu.Unlock()

	if len(buffered) > 0 {
		logger.WithFields(logger.Fields{
			"broker_order_id": brokerOrderID,
			"count":           len(buffered),
		}).Warn("discarding buffered fills for order with unpersisted ack")
	}
}

// applyFill records the fill, updates the order's fill accumulators and
// status, folds the fill into the local position book and records realized
// P&L for sells. Duplicate fill ids are dropped. Caller holds the order lock.
func (m *Manager) applyFill(ctx context.Context, order *model.Order, fill model.OrderFill) error {
	seen, err := m.fills.ExistsByFillID(ctx, fill.FillID)
	if err != nil {
		return fmt.Errorf("checking fill idempotency: %w", err)
	}
	if seen {
		logger.WithFields(logger.Fields{
			"fill_id":  fill.FillID,
			"order_id": order.OrderID,
		}).Warn("duplicate fill dropped")
		return nil
	}

	if model.IsTerminalOrderStatus(order.Status) {
		return fmt.Errorf("fill %s for order %s in terminal status %s", fill.FillID, order.OrderID, order.Status)
	}

	// filled_qty must never exceed the order quantity; an over-delivered fill
	// is applied only up to what is still open.
	if remaining := order.Quantity - order.FilledQty; fill.Quantity > remaining {
		logger.WithFields(logger.Fields{
			"fill_id":   fill.FillID,
			"order_id":  order.OrderID,
			"fill_qty":  fill.Quantity,
			"remaining": remaining,
		}).Warn("fill exceeds remaining order quantity, clamping")
		fill.Quantity = remaining
	}

	var realized float64
	if fill.Side == model.ActionSell {
		if pos, err := m.positions.FindBySymbol(ctx, fill.Symbol); err == nil && pos != nil {
			realized = (fill.Price - pos.AvgPrice) * fill.Quantity
		}
	}

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := m.fills.WithDB(tx).Create(ctx, &fill); err != nil {
			return err
		}

		prevNotional := order.AvgFillPrice * order.FilledQty
		order.FilledQty += fill.Quantity
		if order.FilledQty > 0 {
			order.AvgFillPrice = (prevNotional + fill.Price*fill.Quantity) / order.FilledQty
		}

		next := model.OrderStatusPartialFill
		if order.FilledQty >= order.Quantity {
			next = model.OrderStatusFilled
		}
		if order.Status != next {
			if !model.CanTransitionOrderStatus(order.Status, next) {
				return fmt.Errorf("illegal status transition %s -> %s for order %s", order.Status, next, order.OrderID)
			}
			order.Status = next
		}

		if err := m.orders.WithDB(tx).Save(ctx, order); err != nil {
			return err
		}
		return m.positions.WithDB(tx).ApplyFill(ctx, order.StrategyID, &fill)
	})
	if err != nil {
		return fmt.Errorf("applying fill %s: %w", fill.FillID, err)
	}

	if realized != 0 && m.gate != nil {
		m.gate.State().RecordPnL(decimal.NewFromFloat(realized))
	}

	logger.WithFields(logger.Fields{
		"order_id":   order.OrderID,
		"fill_id":    fill.FillID,
		"filled_qty": order.FilledQty,
		"avg_price":  order.AvgFillPrice,
		"status":     order.Status,
	}).Info("fill applied")

	if m.listener != nil {
		m.listener(*order, fill)
	}

	return nil
}

// Cancel asks the venue to cancel a non-terminal order. The local status
// changes only after the venue confirms the order is actually cancelled.
func (m *Manager) Cancel(ctx context.Context, orderID string) (*model.Order, error) {
	order, err := m.orders.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("unknown order %s", orderID)
	}

	unlock := m.lockOrder(order.OrderID)
	defer unlock()

	if model.IsTerminalOrderStatus(order.Status) {
		return order, fmt.Errorf("order %s is already %s", orderID, order.Status)
	}
	if order.BrokerOrderID == nil {
		return order, fmt.Errorf("order %s has no venue order id to cancel", orderID)
	}

	payload, err := json.Marshal(walPayload{
		OrderID:       order.OrderID,
		BrokerOrderID: *order.BrokerOrderID,
		Symbol:        order.Symbol,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding wal payload: %w", err)
	}
	entry, err := m.wal.Append(ctx, model.WALOpCancelOrder, string(payload))
	if err != nil {
		return nil, fmt.Errorf("appending wal entry: %w", err)
	}

	accepted, err := m.adapter.CancelOrder(ctx, *order.BrokerOrderID)
	if err != nil {
		m.capture(ctx, "Cancel", err)
		if walErr := m.wal.MarkComplete(ctx, entry.ID); walErr != nil {
			return nil, fmt.Errorf("completing wal entry: %w", walErr)
		}
		return order, err
	}

	if accepted {
		status, statusErr := m.adapter.GetOrderStatus(ctx, *order.BrokerOrderID)
		if statusErr == nil && model.CanTransitionOrderStatus(order.Status, status) {
			order.Status = status
			if err := m.orders.Save(ctx, order); err != nil {
				return nil, fmt.Errorf("persisting cancellation: %w", err)
			}
		}
	}

	if err := m.wal.MarkComplete(ctx, entry.ID); err != nil {
		return nil, fmt.Errorf("completing wal entry: %w", err)
	}

	return order, nil
}

// ReplayPending resolves WAL entries left pending by a crash. The venue is
// the source of truth: entries are resolved by querying order state, never by
// resending the operation.
func (m *Manager) ReplayPending(ctx context.Context) error {
	entries, err := m.wal.FindPending(ctx)
	if err != nil {
		return fmt.Errorf("loading pending wal entries: %w", err)
	}

	for _, entry := range entries {
		var payload walPayload
		if err := json.Unmarshal([]byte(entry.Payload), &payload); err != nil {
			logger.WithFields(logger.Fields{
				"wal_id": entry.ID,
			}).WithError(err).Error("unreadable WAL payload, marking complete")
			if err := m.wal.MarkComplete(ctx, entry.ID); err != nil {
				return err
			}
			continue
		}

		if err := m.replayEntry(ctx, entry, payload); err != nil {
			// Leave the entry pending: the venue could not be consulted and
			// the outcome is still unknown.
			logger.WithFields(logger.Fields{
				"wal_id":   entry.ID,
				"order_id": payload.OrderID,
				"wal":      entry.Operation,
			}).WithError(err).Warn("WAL entry could not be resolved, left pending")
			continue
		}
	}

	return nil
}

func (m *Manager) replayEntry(ctx context.Context, entry model.WALEntry, payload walPayload) error {
	order, err := m.orders.FindByOrderID(ctx, payload.OrderID)
	if err != nil {
		return err
	}
	if order == nil || model.IsTerminalOrderStatus(order.Status) {
		return m.wal.MarkComplete(ctx, entry.ID)
	}

	unlock := m.lockOrder(order.OrderID)
	defer unlock()

	switch entry.Operation {
	case model.WALOpSubmitOrder:
		if order.BrokerOrderID == nil {
			return m.resolveUnackedSubmit(ctx, entry, order)
		}
		return m.syncFromVenue(ctx, entry, order, *order.BrokerOrderID)

	case model.WALOpCancelOrder:
		if payload.BrokerOrderID == "" {
			return m.wal.MarkComplete(ctx, entry.ID)
		}
		return m.syncFromVenue(ctx, entry, order, payload.BrokerOrderID)

	default:
		logger.WithFields(logger.Fields{
			"wal_id": entry.ID,
			"wal":    entry.Operation,
		}).Warn("unknown WAL operation, marking complete")
		return m.wal.MarkComplete(ctx, entry.ID)
	}
}

// resolveUnackedSubmit handles the crashed-between-WAL-and-ack window. The
// venue is asked whether it ever saw the client order id: if it did, the
// order is adopted; if it did not, the order is rejected locally. It is
// never resubmitted.
func (m *Manager) resolveUnackedSubmit(ctx context.Context, entry model.WALEntry, order *model.Order) error {
	lookup, ok := m.adapter.(connectors.ClientOrderLookup)
	if !ok {
		return m.rejectLostSubmission(ctx, entry, order)
	}

	brokerOrderID, status, err := lookup.FindOrderByClientID(ctx, order.OrderID)
	if errors.Is(err, connectors.ErrOrderLookupUnsupported) {
		return m.rejectLostSubmission(ctx, entry, order)
	}
	if err != nil {
		return err
	}

	if brokerOrderID == "" {
		order.Status = model.OrderStatusRejected
		order.ErrorMessage = "order never reached the venue, not resubmitted"
		if err := m.orders.Save(ctx, order); err != nil {
			return err
		}
		return m.wal.MarkComplete(ctx, entry.ID)
	}

	order.BrokerOrderID = &brokerOrderID
	if order.Status != status {
		if model.CanTransitionOrderStatus(order.Status, status) {
			order.Status = status
		} else if model.CanTransitionOrderStatus(order.Status, model.OrderStatusSubmitted) &&
			model.CanTransitionOrderStatus(model.OrderStatusSubmitted, status) {
			// The ack was lost, so the SUBMITTED edge was never recorded.
			order.Status = status
		}
	}
	if err := m.orders.Save(ctx, order); err != nil {
		return err
	}

	logger.WithFields(logger.Fields{
		"order_id":        order.OrderID,
		"broker_order_id": brokerOrderID,
		"status":          order.Status,
	}).Info("recovered order adopted from venue state")

	return m.wal.MarkComplete(ctx, entry.ID)
}

// rejectLostSubmission closes out an unacked submission that cannot be
// resolved because the venue offers no client order lookup.
func (m *Manager) rejectLostSubmission(ctx context.Context, entry model.WALEntry, order *model.Order) error {
	order.Status = model.OrderStatusRejected
	order.ErrorMessage = "submission outcome lost in restart, venue has no order lookup"
	if err := m.orders.Save(ctx, order); err != nil {
		return err
	}
	return m.wal.MarkComplete(ctx, entry.ID)
}

// syncFromVenue refreshes the local status from the venue and completes the
// WAL entry.
func (m *Manager) syncFromVenue(ctx context.Context, entry model.WALEntry, order *model.Order, brokerOrderID string) error {
	status, err := m.adapter.GetOrderStatus(ctx, brokerOrderID)
	if err != nil {
		return err
	}

	if order.Status != status && model.CanTransitionOrderStatus(order.Status, status) {
		order.Status = status
		if err := m.orders.Save(ctx, order); err != nil {
			return err
		}
	}

	return m.wal.MarkComplete(ctx, entry.ID)
}

// capture persists a system exception for later auditing. Failures here only
// log: exception bookkeeping never breaks the execution path.
func (m *Manager) capture(ctx context.Context, method string, err error) {
	if err == nil {
		return
	}

	exc := &model.Exception{
		Service: "order_executor",
		Module:  "lifecycle",
		Method:  method,
		Message: err.Error(),
		Level:   "error",
	}
	if cerr := m.exceptions.Create(ctx, exc); cerr != nil {
		logger.WithFields(logger.Fields{
			"method": method,
		}).WithError(cerr).Warn("failed to persist exception")
	}
}
