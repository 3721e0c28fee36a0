package ratelimiter

import "context"

// Store defines the interface for rate limit storage backends.
type Store interface {
	// Consume atomically attempts to take the given number of requests and
	// tokens from the provider's buckets. Consumption is all-or-nothing: when
	// either budget is insufficient nothing is taken and allowed is false.
	// The returned state reflects the buckets after refill and any consumption.
	Consume(ctx context.Context, provider string, requests, tokens int, config Config) (allowed bool, state State, err error)

	// Reset clears the rate limit state for the given provider.
	Reset(ctx context.Context, provider string) error
}
