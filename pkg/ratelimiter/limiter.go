package ratelimiter

import (
	"context"
	"fmt"
	"time"
)

// TokenBucket implements Limiter using dual token buckets per provider:
// one bucket counts requests, the other counts estimated tokens.
type TokenBucket struct {
	store     Store
	config    Config
	overrides map[string]Config
}

// Option configures a TokenBucket.
type Option func(*TokenBucket)

// WithProviderConfig overrides the default configuration for a single provider.
// Useful when upstream services publish different quotas per account tier.
func WithProviderConfig(provider string, config Config) Option {
	return func(tb *TokenBucket) {
		tb.overrides[provider] = config
	}
}

// New creates a new dual-bucket rate limiter backed by the given store.
func New(store Store, config Config, opts ...Option) (*TokenBucket, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if err := config.validate(); err != nil {
		return nil, err
	}

	tb := &TokenBucket{
		store:     store,
		config:    config,
		overrides: make(map[string]Config),
	}

	for _, opt := range opts {
		opt(tb)
	}

	for provider, cfg := range tb.overrides {
		if err := cfg.validate(); err != nil {
			return nil, fmt.Errorf("provider %q: %w", provider, err)
		}
	}

	return tb, nil
}

// CheckLimit implements Limiter.
func (tb *TokenBucket) CheckLimit(ctx context.Context, provider string, cost int) (*Result, error) {
	if cost < 0 {
		return nil, fmt.Errorf("%w: must be non-negative, got %d", ErrInvalidCost, cost)
	}

	config := tb.configFor(provider)

	allowed, state, err := tb.store.Consume(ctx, provider, 1, cost, config)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Allowed:           allowed,
		RemainingRequests: state.RemainingRequests,
		RemainingTokens:   state.RemainingTokens,
	}

	if !allowed {
		result.Reason, result.RetryAfter = denialOf(state)
	}

	return result, nil
}

// Status returns the current state of the provider's buckets without consuming
// anything. Buckets are still refilled as a side effect.
func (tb *TokenBucket) Status(ctx context.Context, provider string) (*Result, error) {
	_, state, err := tb.store.Consume(ctx, provider, 0, 0, tb.configFor(provider))
	if err != nil {
		return nil, err
	}

	return &Result{
		Allowed:           true,
		RemainingRequests: state.RemainingRequests,
		RemainingTokens:   state.RemainingTokens,
	}, nil
}

// Reset clears the rate limit state for the given provider.
func (tb *TokenBucket) Reset(ctx context.Context, provider string) error {
	return tb.store.Reset(ctx, provider)
}

func (tb *TokenBucket) configFor(provider string) Config {
	if cfg, ok := tb.overrides[provider]; ok {
		return cfg
	}
	return tb.config
}

// denialOf determines which budget blocked the check and how long to wait
// until enough units have been refilled.
func denialOf(state State) (reason string, retryAfter time.Duration) {
	if state.RemainingRequests < 1 {
		reason = "request quota exhausted"
		retryAfter = time.Until(state.RequestsResetAt)
	} else {
		reason = "token quota exhausted"
		retryAfter = time.Until(state.TokensResetAt)
	}
	if retryAfter < 0 {
		retryAfter = 0
	}
	return reason, retryAfter
}

func (c Config) validate() error {
	if err := c.Requests.validate(); err != nil {
		return fmt.Errorf("requests bucket: %w", err)
	}
	if err := c.Tokens.validate(); err != nil {
		return fmt.Errorf("tokens bucket: %w", err)
	}
	return nil
}

func (b BucketConfig) validate() error {
	if b.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, b.Capacity)
	}
	if b.RefillRate <= 0 {
		return fmt.Errorf("%w: refill rate must be positive, got %d", ErrInvalidConfig, b.RefillRate)
	}
	if b.RefillInterval <= 0 {
		return fmt.Errorf("%w: refill interval must be positive, got %v", ErrInvalidConfig, b.RefillInterval)
	}
	return nil
}
