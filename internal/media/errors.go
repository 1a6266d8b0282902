package media

import "errors"

var (
	// ErrClosed is returned by Bus and Subscription operations after close.
	ErrClosed = errors.New("media: closed")

	// ErrNegativeDemand is returned when a release would take the demand
	// counter below zero.
	ErrNegativeDemand = errors.New("media: demand counter would go negative")

	errBadCapacity = errors.New("media: queue capacity must be at least 1")
)
