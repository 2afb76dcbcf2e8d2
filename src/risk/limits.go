package risk

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// Limits are the configured pre-trade caps. They are not mutated at runtime;
// an admin restart (or explicit reload) is the only way they change.
type Limits struct {
	MaxOrderQty       decimal.Decimal // max quantity of a single order
	MaxSymbolNotional decimal.Decimal // max open notional per symbol
	MaxPositionPct    decimal.Decimal // max symbol notional as fraction of equity (0..1)
	MaxOpenPositions  int
	MaxExposurePct    decimal.Decimal // max gross exposure as fraction of equity (0..1)
	DailyLossLimit    decimal.Decimal // positive number, loss beyond this halts trading
	MaxDrawdownPct    decimal.Decimal // fraction of peak equity (0..1)
	AllowedSymbols    []string        // empty means all symbols allowed
	BlockedSymbols    []string
}

// scaled returns a copy with the position/exposure caps multiplied by the
// risk bias. Loss limits are never scaled: external guidance widens or
// narrows sizing, it does not move the halt thresholds.
func (l Limits) scaled(bias decimal.Decimal) Limits {
	out := l
	out.MaxOrderQty = l.MaxOrderQty.Mul(bias)
	out.MaxSymbolNotional = l.MaxSymbolNotional.Mul(bias)
	out.MaxPositionPct = l.MaxPositionPct.Mul(bias)
	out.MaxExposurePct = l.MaxExposurePct.Mul(bias)
	return out
}

type Config struct {
	MaxOrderQty       float64  `envconfig:"RISK_MAX_ORDER_QTY" default:"1000"`
	MaxSymbolNotional float64  `envconfig:"RISK_MAX_SYMBOL_NOTIONAL" default:"50000"`
	MaxPositionPct    float64  `envconfig:"RISK_MAX_POSITION_PCT" default:"0.2"`
	MaxOpenPositions  int      `envconfig:"RISK_MAX_OPEN_POSITIONS" default:"10"`
	MaxExposurePct    float64  `envconfig:"RISK_MAX_EXPOSURE_PCT" default:"0.8"`
	DailyLossLimit    float64  `envconfig:"RISK_DAILY_LOSS_LIMIT" default:"5000"`
	MaxDrawdownPct    float64  `envconfig:"RISK_MAX_DRAWDOWN_PCT" default:"0.15"`
	AllowedSymbols    []string `envconfig:"RISK_ALLOWED_SYMBOLS"`
	BlockedSymbols    []string `envconfig:"RISK_BLOCKED_SYMBOLS"`

	BiasStaleAfter string `envconfig:"RISK_BIAS_STALE_AFTER" default:"5m"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

// LimitsFromConfig converts the env-sourced config into decimal limits.
func LimitsFromConfig(c Config) Limits {
	return Limits{
		MaxOrderQty:       decimal.NewFromFloat(c.MaxOrderQty),
		MaxSymbolNotional: decimal.NewFromFloat(c.MaxSymbolNotional),
		MaxPositionPct:    decimal.NewFromFloat(c.MaxPositionPct),
		MaxOpenPositions:  c.MaxOpenPositions,
		MaxExposurePct:    decimal.NewFromFloat(c.MaxExposurePct),
		DailyLossLimit:    decimal.NewFromFloat(c.DailyLossLimit),
		MaxDrawdownPct:    decimal.NewFromFloat(c.MaxDrawdownPct),
		AllowedSymbols:    c.AllowedSymbols,
		BlockedSymbols:    c.BlockedSymbols,
	}
}
