package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"orderexecutor/src/model"
)

// Check names, in the exact order they run. The ordering is part of the
// observable contract: callers may depend on which check fails first.
const (
	CheckKillSwitch      = "kill_switch"
	CheckStrategyPaused  = "strategy_paused"
	CheckSymbolList      = "symbol_list"
	CheckPositionLimits  = "position_limits"
	CheckPortfolioLimits = "portfolio_limits"
	CheckLossLimits      = "loss_limits"
)

// Result is the gate's verdict on a signal.
type Result struct {
	Approved     bool     `json:"approved"`
	ChecksPassed []string `json:"checks_passed"`
	ChecksFailed []string `json:"checks_failed"`
	Reason       string   `json:"reason,omitempty"`
}

// PortfolioSnapshot is the account state the limit checks evaluate against.
type PortfolioSnapshot struct {
	Equity         decimal.Decimal
	BuyingPower    decimal.Decimal
	GrossExposure  decimal.Decimal
	OpenPositions  int
	SymbolNotional map[string]decimal.Decimal
}

// PortfolioView supplies the current snapshot. A failing view makes the
// dependent checks fail closed; it never blocks the gate beyond the caller's
// context.
type PortfolioView interface {
	Snapshot(ctx context.Context) (PortfolioSnapshot, error)
}

// RefPriceFunc returns a reference price used to compute order notional.
type RefPriceFunc func(symbol string) (float64, error)

// Gate decides whether a Signal may become an Order. Checks run in a fixed,
// fail-fast sequence; the first failure is the reported reason.
type Gate struct {
	limits         Limits
	state          *State
	bias           BiasProvider
	biasStaleAfter time.Duration
	portfolio      PortfolioView
	refPrice       RefPriceFunc
	now            func() time.Time
}

func NewGate(limits Limits, state *State, bias BiasProvider, biasStaleAfter time.Duration, portfolio PortfolioView, refPrice RefPriceFunc) *Gate {
	if state == nil {
		state = NewState()
	}
	return &Gate{
		limits:         limits,
		state:          state,
		bias:           bias,
		biasStaleAfter: biasStaleAfter,
		portfolio:      portfolio,
		refPrice:       refPrice,
		now:            time.Now,
	}
}

// State exposes the gate-owned runtime state for admin actions (kill switch
// clear, strategy pause) and P&L accounting.
func (g *Gate) State() *State {
	return g.state
}

type gateCheck struct {
	name string
	run  func() (bool, string)
}

// Evaluate runs the check sequence against the signal. The risk bias scales
// the position/exposure caps before any check runs.
func (g *Gate) Evaluate(ctx context.Context, sig model.Signal) Result {
	bias := effectiveBias(g.bias, g.biasStaleAfter, g.now())
	limits := g.limits.scaled(bias)

	var (
		snapshot    PortfolioSnapshot
		snapshotErr error
		snapshotOK  bool
	)
	loadSnapshot := func() (PortfolioSnapshot, error) {
		if snapshotOK || snapshotErr != nil {
			return snapshot, snapshotErr
		}
		if g.portfolio == nil {
			snapshotErr = fmt.Errorf("no portfolio view configured")
			return snapshot, snapshotErr
		}
		snapshot, snapshotErr = g.portfolio.Snapshot(ctx)
		snapshotOK = snapshotErr == nil
		return snapshot, snapshotErr
	}

	checks := []gateCheck{
		{CheckKillSwitch, func() (bool, string) { return g.checkKillSwitch() }},
		{CheckStrategyPaused, func() (bool, string) { return g.checkStrategyPaused(sig) }},
		{CheckSymbolList, func() (bool, string) { return g.checkSymbolList(sig, limits) }},
		{CheckPositionLimits, func() (bool, string) { return g.checkPositionLimits(sig, limits, loadSnapshot) }},
		{CheckPortfolioLimits, func() (bool, string) { return g.checkPortfolioLimits(sig, limits, loadSnapshot) }},
		{CheckLossLimits, func() (bool, string) { return g.checkLossLimits(limits, loadSnapshot) }},
	}

	result := Result{Approved: true}
	for _, check := range checks {
		ok, reason := check.run()
		if !ok {
			result.Approved = false
			result.ChecksFailed = append(result.ChecksFailed, check.name)
			result.Reason = reason

			logger.WithFields(logger.Fields{
				"strategy_id": sig.StrategyID,
				"symbol":      sig.Symbol,
				"check":       check.name,
				"reason":      reason,
			}).Warn("signal rejected by risk gate")

			return result
		}
		result.ChecksPassed = append(result.ChecksPassed, check.name)
	}

	return result
}

func (g *Gate) checkKillSwitch() (bool, string) {
	if active, reason := g.state.KillSwitch(); active {
		return false, fmt.Sprintf("kill switch active: %s", reason)
	}
	return true, ""
}

func (g *Gate) checkStrategyPaused(sig model.Signal) (bool, string) {
	if g.state.IsPaused(sig.StrategyID) {
		return false, fmt.Sprintf("strategy %s is paused", sig.StrategyID)
	}
	return true, ""
}

func (g *Gate) checkSymbolList(sig model.Signal, limits Limits) (bool, string) {
	for _, blocked := range limits.BlockedSymbols {
		if blocked == sig.Symbol {
			return false, fmt.Sprintf("symbol %s is blocked", sig.Symbol)
		}
	}
	if len(limits.AllowedSymbols) > 0 {
		for _, allowed := range limits.AllowedSymbols {
			if allowed == sig.Symbol {
				return true, ""
			}
		}
		return false, fmt.Sprintf("symbol %s is not on the allow list", sig.Symbol)
	}
	return true, ""
}

// checkPositionLimits caps order size and per-symbol concentration. Sell
// actions always pass: reducing risk is never blocked.
func (g *Gate) checkPositionLimits(sig model.Signal, limits Limits, loadSnapshot func() (PortfolioSnapshot, error)) (bool, string) {
	if sig.Action == model.ActionSell {
		return true, ""
	}

	qty := decimal.NewFromFloat(sig.Quantity)
	if limits.MaxOrderQty.IsPositive() && qty.GreaterThan(limits.MaxOrderQty) {
		return false, fmt.Sprintf("order quantity %s exceeds limit %s", qty, limits.MaxOrderQty)
	}

	notional, err := g.orderNotional(sig)
	if err != nil {
		return false, fmt.Sprintf("cannot price order: %v", err)
	}

	snapshot, err := loadSnapshot()
	if err != nil {
		return false, fmt.Sprintf("portfolio state unavailable: %v", err)
	}

	symbolNotional := snapshot.SymbolNotional[sig.Symbol].Add(notional)
	if limits.MaxSymbolNotional.IsPositive() && symbolNotional.GreaterThan(limits.MaxSymbolNotional) {
		return false, fmt.Sprintf("symbol notional %s exceeds limit %s", symbolNotional, limits.MaxSymbolNotional)
	}

	if limits.MaxPositionPct.IsPositive() && snapshot.Equity.IsPositive() {
		pct := symbolNotional.Div(snapshot.Equity)
		if pct.GreaterThan(limits.MaxPositionPct) {
			return false, fmt.Sprintf("position would be %s of equity, limit is %s", pct.StringFixed(4), limits.MaxPositionPct.StringFixed(4))
		}
	}

	return true, ""
}

// checkPortfolioLimits caps aggregate exposure and verifies buying power.
// Sells reduce exposure and are exempt.
func (g *Gate) checkPortfolioLimits(sig model.Signal, limits Limits, loadSnapshot func() (PortfolioSnapshot, error)) (bool, string) {
	if sig.Action == model.ActionSell {
		return true, ""
	}

	snapshot, err := loadSnapshot()
	if err != nil {
		return false, fmt.Sprintf("portfolio state unavailable: %v", err)
	}

	notional, err := g.orderNotional(sig)
	if err != nil {
		return false, fmt.Sprintf("cannot price order: %v", err)
	}

	opensNewPosition := snapshot.SymbolNotional[sig.Symbol].IsZero()
	if limits.MaxOpenPositions > 0 && opensNewPosition && snapshot.OpenPositions >= limits.MaxOpenPositions {
		return false, fmt.Sprintf("open positions at limit %d", limits.MaxOpenPositions)
	}

	if limits.MaxExposurePct.IsPositive() && snapshot.Equity.IsPositive() {
		exposure := snapshot.GrossExposure.Add(notional).Div(snapshot.Equity)
		if exposure.GreaterThan(limits.MaxExposurePct) {
			return false, fmt.Sprintf("gross exposure would be %s of equity, limit is %s", exposure.StringFixed(4), limits.MaxExposurePct.StringFixed(4))
		}
	}

	if notional.GreaterThan(snapshot.BuyingPower) {
		return false, fmt.Sprintf("order notional %s exceeds buying power %s", notional, snapshot.BuyingPower)
	}

	return true, ""
}

// checkLossLimits rejects when the daily loss or drawdown threshold is
// crossed, and trips the kill switch as a side effect so every subsequent
// signal is halted until an operator intervenes.
func (g *Gate) checkLossLimits(limits Limits, loadSnapshot func() (PortfolioSnapshot, error)) (bool, string) {
	if limits.DailyLossLimit.IsPositive() {
		pnl := g.state.DailyPnL()
		if pnl.LessThanOrEqual(limits.DailyLossLimit.Neg()) {
			reason := fmt.Sprintf("daily loss %s breached limit %s", pnl, limits.DailyLossLimit)
			g.state.TripKillSwitch(reason)
			return false, reason
		}
	}

	if limits.MaxDrawdownPct.IsPositive() {
		peak := g.state.PeakEquity()
		if peak.IsPositive() {
			snapshot, err := loadSnapshot()
			if err != nil {
				return false, fmt.Sprintf("portfolio state unavailable: %v", err)
			}
			drawdown := peak.Sub(snapshot.Equity).Div(peak)
			if drawdown.GreaterThanOrEqual(limits.MaxDrawdownPct) {
				reason := fmt.Sprintf("drawdown %s from peak breached limit %s", drawdown.StringFixed(4), limits.MaxDrawdownPct.StringFixed(4))
				g.state.TripKillSwitch(reason)
				return false, reason
			}
		}
	}

	return true, ""
}

func (g *Gate) orderNotional(sig model.Signal) (decimal.Decimal, error) {
	price := 0.0
	if sig.LimitPrice != nil {
		price = *sig.LimitPrice
	} else if g.refPrice != nil {
		p, err := g.refPrice(sig.Symbol)
		if err != nil {
			return decimal.Zero, err
		}
		price = p
	}
	if price <= 0 {
		return decimal.Zero, fmt.Errorf("no reference price for %s", sig.Symbol)
	}
	return decimal.NewFromFloat(sig.Quantity).Mul(decimal.NewFromFloat(price)), nil
}
