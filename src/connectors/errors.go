package connectors

import (
	"errors"
	"fmt"
)

// ErrOrderLookupUnsupported is returned by decorators whose wrapped venue
// cannot resolve orders by client order id. Callers treat it the same as the
// venue not implementing ClientOrderLookup at all.
var ErrOrderLookupUnsupported = errors.New("venue does not support order lookup by client id")

// SubmissionError means the venue refused the order, or the adapter was not
// in a state to send it. The reason is already sanitized.
type SubmissionError struct {
	Reason string
	Err    error
}

func (e *SubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("order submission failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("order submission failed: %s", e.Reason)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// CancelError means the venue refused a cancel request.
type CancelError struct {
	BrokerOrderID string
	Reason        string
}

func (e *CancelError) Error() string {
	return fmt.Sprintf("cancel of %s failed: %s", e.BrokerOrderID, e.Reason)
}

// ConnectionError is a transport level failure. It triggers the adapter's
// reconnect loop; callers treat the in-flight operation as failed.
type ConnectionError struct {
	Venue string
	Err   error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s connection error: %v", e.Venue, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// RateLimitError marks a vendor call rejected for throttling. Adapters retry
// these with backoff before surfacing them.
type RateLimitError struct {
	Venue string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limit hit", e.Venue)
}
