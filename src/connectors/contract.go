package connectors

import (
	"context"

	"orderexecutor/src/model"
)

// FillCallback receives venue fills. Implementations of BrokerAdapter must
// invoke the registered callback at most once per unique fill_id, even if
// the underlying transport redelivers.
type FillCallback func(fill model.OrderFill)

// BrokerAdapter is the contract every execution venue implements, simulated
// or live. Callers never see a venue's native concurrency model: blocking
// calls take a context, fills arrive through the subscribed callback.
type BrokerAdapter interface {
	// SubmitOrder sends the order to the venue and returns the venue order id.
	// A disconnected adapter rejects locally with a SubmissionError before any
	// network call is attempted.
	SubmitOrder(ctx context.Context, order *model.Order) (string, error)

	// CancelOrder asks the venue to cancel. A true return means the venue
	// accepted the cancel request, not that the order is already cancelled.
	CancelOrder(ctx context.Context, brokerOrderID string) (bool, error)

	// GetOrderStatus maps the venue-native status into the canonical
	// vocabulary of model.OrderStatus*.
	GetOrderStatus(ctx context.Context, brokerOrderID string) (string, error)

	// SubscribeFills registers the single fill callback.
	SubscribeFills(cb FillCallback)
}

// ClientOrderLookup is implemented by venues that can resolve an order by the
// client order id supplied at submission. Crash recovery uses it to learn the
// fate of a submission whose outcome was lost. An empty venue order id with a
// nil error means the venue never saw the client order id.
type ClientOrderLookup interface {
	FindOrderByClientID(ctx context.Context, clientOrderID string) (string, string, error)
}

// QueryExtension is the optional read-only account surface a venue may offer.
// Reconciliation requires it; the execution path does not.
type QueryExtension interface {
	GetPositions(ctx context.Context) ([]model.BrokerPosition, error)
	GetAccount(ctx context.Context) (model.BrokerAccount, error)
}

// ConnectedAdapter is implemented by venues with a managed session.
type ConnectedAdapter interface {
	Connect(ctx context.Context) error
	Disconnect() error
}
