package types

import "errors"

// Error classes shared by every layer. Callers classify failures with
// errors.Is; producers wrap them with fmt.Errorf("...: %w", ErrX).
var (
	// ErrNotFound reports an unknown client or record.
	ErrNotFound = errors.New("not found")

	// ErrUpstreamUnavailable reports a failed call to one client endpoint.
	// It is absorbed by the aggregators and never aborts a fan-out.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrConfiguration reports an invalid request: unknown metric, comparator,
	// timeframe or report kind, or an unregistered client.
	ErrConfiguration = errors.New("configuration error")

	// ErrPersistence reports a store read or write failure.
	ErrPersistence = errors.New("persistence error")
)
