package ratelimiter

import (
	"context"
	"time"
)

// Limiter is the admission-control contract consumed by the request dispatcher.
// Implementations must be safe for concurrent use.
type Limiter interface {
	// CheckLimit reports whether a request against the given provider, with the
	// given estimated token cost, may proceed now. A denied result carries the
	// advisory delay after which the caller should check again.
	CheckLimit(ctx context.Context, provider string, cost int) (*Result, error)
}

// Result contains the outcome of a rate limit check.
type Result struct {
	Allowed           bool
	RetryAfter        time.Duration // How long to wait before checking again; zero when allowed
	RemainingRequests int
	RemainingTokens   int
	Reason            string // Human-readable denial reason; empty when allowed
}

// BucketConfig defines a single token bucket.
type BucketConfig struct {
	Capacity       int           // Maximum units the bucket can hold (burst limit)
	RefillRate     int           // Units added per refill interval
	RefillInterval time.Duration // How often units are added
}

// Config defines the dual-budget configuration for one provider: a request
// bucket consumed once per check and a token bucket consumed by estimated cost.
type Config struct {
	Requests BucketConfig
	Tokens   BucketConfig
}

// State is a point-in-time view of one provider's buckets as reported by a Store.
type State struct {
	RemainingRequests int
	RemainingTokens   int
	RequestsResetAt   time.Time // When the request bucket next gains units
	TokensResetAt     time.Time // When the token bucket next gains units
}
