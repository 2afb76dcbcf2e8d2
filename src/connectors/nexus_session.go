package connectors

// Vendor-side types for the Nexus brokerage SDK. Request/response calls are
// synchronous; asynchronous events (fills, order updates, disconnects) arrive
// through a handler invoked on a vendor-managed goroutine.

type NexusOrderRequest struct {
	ClientOrderID string  `json:"client_order_id"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	Type          string  `json:"type"`
	Quantity      float64 `json:"quantity"`
	LimitPrice    float64 `json:"limit_price,omitempty"`
}

type NexusOrderAck struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type NexusFill struct {
	FillID    string  `json:"fill_id"`
	OrderID   string  `json:"order_id"`
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	Quantity  float64 `json:"quantity"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"` // unix millis
}

type NexusOrderUpdate struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type NexusPosition struct {
	Symbol        string  `json:"symbol"`
	Quantity      float64 `json:"quantity"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
	MarketValue   float64 `json:"market_value"`
	UnrealizedPnl float64 `json:"unrealized_pnl"`
}

type NexusAccount struct {
	AccountID   string  `json:"account_id"`
	Equity      float64 `json:"equity"`
	Cash        float64 `json:"cash"`
	BuyingPower float64 `json:"buying_power"`
	Currency    string  `json:"currency"`
}

const (
	NexusEventFill        = "fill"
	NexusEventOrderUpdate = "order_update"
	NexusEventDisconnect  = "disconnect"
)

// NexusEvent is the single payload type crossing from the vendor's callback
// goroutine into the adapter.
type NexusEvent struct {
	Type        string            `json:"type"`
	Fill        *NexusFill        `json:"fill,omitempty"`
	OrderUpdate *NexusOrderUpdate `json:"order_update,omitempty"`
}

// NexusSession is the surface of the vendor SDK the adapter depends on. The
// concrete implementation is NexusRESTSession; tests substitute a fake.
type NexusSession interface {
	// Open establishes the session and subscribes to the account's order and
	// fill event streams.
	Open(accountID string) error
	Close() error

	// SetEventHandler registers the handler the vendor invokes on its own
	// goroutine. Must be called before Open.
	SetEventHandler(handler func(NexusEvent))

	PlaceOrder(req NexusOrderRequest) (NexusOrderAck, error)
	CancelOrder(vendorOrderID string) error
	OrderStatus(vendorOrderID string) (string, error)
	OrderStatusByClientID(clientOrderID string) (string, string, error)

	Positions() ([]NexusPosition, error)
	Account() (NexusAccount, error)
}
