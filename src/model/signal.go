package model

import (
	"fmt"
	"time"
)

const (
	ActionBuy  = "buy"
	ActionSell = "sell"

	OrderTypeMarket = "market"
	OrderTypeLimit  = "limit"
)

// Signal is a strategy's trading intent. It is ephemeral: it is never stored
// on its own, it only exists long enough to be turned into an Order.
type Signal struct {
	StrategyID string    `json:"strategy_id"`
	Symbol     string    `json:"symbol"`
	Action     string    `json:"action"`
	Quantity   float64   `json:"quantity"`
	OrderType  string    `json:"order_type"`
	LimitPrice *float64  `json:"limit_price,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ValidationError marks a signal or order that is malformed and was rejected
// before any venue contact.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Msg)
}

// Validate checks the signal's own consistency. Risk checks happen later, in
// the risk gate.
func (s *Signal) Validate() error {
	if s.StrategyID == "" {
		return &ValidationError{Field: "strategy_id", Msg: "must not be empty"}
	}
	if s.Symbol == "" {
		return &ValidationError{Field: "symbol", Msg: "must not be empty"}
	}
	if s.Action != ActionBuy && s.Action != ActionSell {
		return &ValidationError{Field: "action", Msg: fmt.Sprintf("unknown action %q", s.Action)}
	}
	if s.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Msg: "must be greater than zero"}
	}
	switch s.OrderType {
	case OrderTypeMarket:
		// limit price is ignored for market orders
	case OrderTypeLimit:
		if s.LimitPrice == nil || *s.LimitPrice <= 0 {
			return &ValidationError{Field: "limit_price", Msg: "required for limit orders"}
		}
	default:
		return &ValidationError{Field: "order_type", Msg: fmt.Sprintf("unknown order type %q", s.OrderType)}
	}
	return nil
}
