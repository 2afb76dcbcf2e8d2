package model

// Broker-reported snapshots. These are read-only comparison targets for
// reconciliation, not locally owned state.

// BrokerPosition is a single position as the venue reports it.
type BrokerPosition struct {
	Symbol        string  `json:"symbol"`
	Quantity      float64 `json:"quantity"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
	MarketValue   float64 `json:"market_value"`
	UnrealizedPnl float64 `json:"unrealized_pnl"`
}

// BrokerAccount is the venue's view of the trading account.
type BrokerAccount struct {
	AccountID   string  `json:"account_id"`
	Equity      float64 `json:"equity"`
	Cash        float64 `json:"cash"`
	BuyingPower float64 `json:"buying_power"`
	Currency    string  `json:"currency"`
}
