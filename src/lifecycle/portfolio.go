package lifecycle

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"orderexecutor/src/connectors"
	"orderexecutor/src/repository"
	"orderexecutor/src/risk"
)

// QuoteRefPrice adapts a quote source into the gate's reference price func.
func QuoteRefPrice(quotes connectors.QuoteSource) risk.RefPriceFunc {
	return func(symbol string) (float64, error) {
		q, err := quotes.GetQuote(symbol)
		if err != nil {
			return 0, err
		}
		if q.Last > 0 {
			return q.Last, nil
		}
		return (q.Bid + q.Ask) / 2, nil
	}
}

// BookPortfolio derives the risk gate's portfolio snapshot from the broker
// account and the local position book. Symbol notionals come from the local
// book priced at the reference price, falling back to the recorded average.
type BookPortfolio struct {
	positions *repository.PositionRepository
	account   connectors.QueryExtension
	refPrice  risk.RefPriceFunc
	state     *risk.State
}

func NewBookPortfolio(positions *repository.PositionRepository, account connectors.QueryExtension, refPrice risk.RefPriceFunc, state *risk.State) *BookPortfolio {
	return &BookPortfolio{
		positions: positions,
		account:   account,
		refPrice:  refPrice,
		state:     state,
	}
}

func (p *BookPortfolio) Snapshot(ctx context.Context) (risk.PortfolioSnapshot, error) {
	var snapshot risk.PortfolioSnapshot

	if p.account == nil {
		return snapshot, fmt.Errorf("no account source configured")
	}

	acct, err := p.account.GetAccount(ctx)
	if err != nil {
		return snapshot, fmt.Errorf("fetching account: %w", err)
	}

	book, err := p.positions.All(ctx)
	if err != nil {
		return snapshot, fmt.Errorf("loading position book: %w", err)
	}

	snapshot.Equity = decimal.NewFromFloat(acct.Equity)
	snapshot.BuyingPower = decimal.NewFromFloat(acct.BuyingPower)
	snapshot.SymbolNotional = make(map[string]decimal.Decimal, len(book))

	for _, pos := range book {
		if pos.Quantity == 0 {
			continue
		}

		price := pos.AvgPrice
		if p.refPrice != nil {
			if ref, err := p.refPrice(pos.Symbol); err == nil && ref > 0 {
				price = ref
			}
		}

		notional := decimal.NewFromFloat(pos.Quantity).Mul(decimal.NewFromFloat(price)).Abs()
		snapshot.SymbolNotional[pos.Symbol] = notional
		snapshot.GrossExposure = snapshot.GrossExposure.Add(notional)
		snapshot.OpenPositions++
	}

	if p.state != nil {
		p.state.ObserveEquity(snapshot.Equity)
	}

	return snapshot, nil
}
