package connectors

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/binance"
	logger "github.com/sirupsen/logrus"
)

// Quote is the last traded price for a symbol as seen by a quote source.
type Quote struct {
	Symbol    string
	Bid       float64
	Ask       float64
	Last      float64
	Timestamp time.Time
}

// QuoteSource supplies the prices the simulated venue fills against.
type QuoteSource interface {
	GetQuote(symbol string) (Quote, error)
}

// StaticQuoteSource serves quotes from a fixed in-memory table. Used for
// paper trading without network access and in tests.
type StaticQuoteSource struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewStaticQuoteSource() *StaticQuoteSource {
	return &StaticQuoteSource{quotes: make(map[string]Quote)}
}

// SetQuote installs or replaces the quote for a symbol.
func (s *StaticQuoteSource) SetQuote(symbol string, bid, ask float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[symbol] = Quote{
		Symbol:    symbol,
		Bid:       bid,
		Ask:       ask,
		Last:      (bid + ask) / 2,
		Timestamp: time.Now().UTC(),
	}
}

func (s *StaticQuoteSource) GetQuote(symbol string) (Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[symbol]
	if !ok {
		return Quote{}, fmt.Errorf("no quote available for symbol %s", symbol)
	}
	return q, nil
}

// GoexQuoteSource pulls live tickers through the goex binance client, so the
// simulated venue can fill against real market prices while never placing a
// real order. Quotes are cached briefly to stay inside public rate limits.
type GoexQuoteSource struct {
	exchange goex.API
	quote    string // quote currency, e.g. "USDT"
	cacheTTL time.Duration

	mu    sync.Mutex
	cache map[string]Quote
}

func NewGoexQuoteSource(quoteCurrency string, cacheTTL time.Duration) *GoexQuoteSource {
	if quoteCurrency == "" {
		quoteCurrency = "USDT"
	}
	if cacheTTL <= 0 {
		cacheTTL = 2 * time.Second
	}

	apiConfig := &goex.APIConfig{
		HttpClient: http.DefaultClient,
		Endpoint:   binance.GLOBAL_API_BASE_URL,
	}

	return &GoexQuoteSource{
		exchange: binance.NewWithConfig(apiConfig),
		quote:    quoteCurrency,
		cacheTTL: cacheTTL,
		cache:    make(map[string]Quote),
	}
}

func (g *GoexQuoteSource) GetQuote(symbol string) (Quote, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cached, ok := g.cache[symbol]; ok && time.Since(cached.Timestamp) < g.cacheTTL {
		return cached, nil
	}

	pair := goex.NewCurrencyPair(
		goex.Currency{Symbol: symbol},
		goex.Currency{Symbol: g.quote},
	)

	ticker, err := g.exchange.GetTicker(pair)
	if err != nil {
		logger.WithError(err).
			WithField("symbol", symbol).
			Error("failed to fetch ticker from goex")
		return Quote{}, fmt.Errorf("get ticker for %s: %w", symbol, err)
	}

	q := Quote{
		Symbol:    symbol,
		Bid:       ticker.Buy,
		Ask:       ticker.Sell,
		Last:      ticker.Last,
		Timestamp: time.Now().UTC(),
	}
	g.cache[symbol] = q

	return q, nil
}
