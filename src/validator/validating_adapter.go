package validator

import (
	"context"
	"fmt"
	"sync"

	logger "github.com/sirupsen/logrus"

	"orderexecutor/src/connectors"
	"orderexecutor/src/model"
)

// Options configure the pre-trade checks the decorator applies.
type Options struct {
	// MaxPositionSize caps the quantity of any single order. Zero disables.
	MaxPositionSize float64
	// MaxOrderValue caps price*quantity of any single order. Zero disables.
	MaxOrderValue float64
	// RequireConfirmation rejects every order until Confirm is called once
	// for this session.
	RequireConfirmation bool
	// Halted reports whether the daily-loss halt is in force.
	Halted func() (bool, string)
	// RefPrice prices market orders for the value check. Limit orders use
	// their limit price.
	RefPrice func(symbol string) (float64, error)
}

// ValidatingAdapter wraps any BrokerAdapter -- including another decorator --
// and rejects violating orders locally before they reach the inner adapter.
// Every other contract method delegates untouched, so stacking decorators
// composes without either knowing the other's concrete type.
type ValidatingAdapter struct {
	inner connectors.BrokerAdapter
	opts  Options

	mu        sync.Mutex
	confirmed bool
}

func NewValidatingAdapter(inner connectors.BrokerAdapter, opts Options) *ValidatingAdapter {
	return &ValidatingAdapter{inner: inner, opts: opts}
}

// Confirm satisfies the explicit-confirmation requirement for this session.
func (v *ValidatingAdapter) Confirm() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.confirmed = true
}

func (v *ValidatingAdapter) SubmitOrder(ctx context.Context, order *model.Order) (string, error) {
	if reason := v.violation(order); reason != "" {
		logger.WithFields(logger.Fields{
			"order_id": order.OrderID,
			"symbol":   order.Symbol,
			"reason":   reason,
		}).Warn("order rejected by validating adapter")
		return "", &connectors.SubmissionError{Reason: reason}
	}
	return v.inner.SubmitOrder(ctx, order)
}

func (v *ValidatingAdapter) violation(order *model.Order) string {
	if v.opts.Halted != nil {
		if halted, why := v.opts.Halted(); halted {
			return fmt.Sprintf("trading halted: %s", why)
		}
	}

	if v.opts.RequireConfirmation {
		v.mu.Lock()
		confirmed := v.confirmed
		v.mu.Unlock()
		if !confirmed {
			return "order requires explicit session confirmation"
		}
	}

	if v.opts.MaxPositionSize > 0 && order.Quantity > v.opts.MaxPositionSize {
		return fmt.Sprintf("quantity %v exceeds position size limit %v", order.Quantity, v.opts.MaxPositionSize)
	}

	if v.opts.MaxOrderValue > 0 {
		price := 0.0
		if order.LimitPrice != nil {
			price = *order.LimitPrice
		} else if v.opts.RefPrice != nil {
			p, err := v.opts.RefPrice(order.Symbol)
			if err != nil {
				return fmt.Sprintf("cannot price order for value check: %v", err)
			}
			price = p
		}
		if price > 0 {
			value := price * order.Quantity
			if value > v.opts.MaxOrderValue {
				return fmt.Sprintf("order value %v exceeds limit %v", value, v.opts.MaxOrderValue)
			}
		}
	}

	return ""
}

func (v *ValidatingAdapter) CancelOrder(ctx context.Context, brokerOrderID string) (bool, error) {
	return v.inner.CancelOrder(ctx, brokerOrderID)
}

func (v *ValidatingAdapter) GetOrderStatus(ctx context.Context, brokerOrderID string) (string, error) {
	return v.inner.GetOrderStatus(ctx, brokerOrderID)
}

func (v *ValidatingAdapter) SubscribeFills(cb connectors.FillCallback) {
	v.inner.SubscribeFills(cb)
}

// FindOrderByClientID delegates to the inner adapter's order lookup when
// present, so crash recovery still reaches venue truth through the decorator.
func (v *ValidatingAdapter) FindOrderByClientID(ctx context.Context, clientOrderID string) (string, string, error) {
	if l, ok := v.inner.(connectors.ClientOrderLookup); ok {
		return l.FindOrderByClientID(ctx, clientOrderID)
	}
	return "", "", connectors.ErrOrderLookupUnsupported
}

// GetPositions delegates to the inner adapter's query extension when present.
func (v *ValidatingAdapter) GetPositions(ctx context.Context) ([]model.BrokerPosition, error) {
	if q, ok := v.inner.(connectors.QueryExtension); ok {
		return q.GetPositions(ctx)
	}
	return nil, fmt.Errorf("inner adapter does not support position queries")
}

// GetAccount delegates to the inner adapter's query extension when present.
func (v *ValidatingAdapter) GetAccount(ctx context.Context) (model.BrokerAccount, error) {
	if q, ok := v.inner.(connectors.QueryExtension); ok {
		return q.GetAccount(ctx)
	}
	return model.BrokerAccount{}, fmt.Errorf("inner adapter does not support account queries")
}
