package ratelimiter

import (
	"context"
	"sync"
	"time"
)

// buckets holds the in-memory state for one provider.
type buckets struct {
	requests       int
	tokens         int
	requestsRefill time.Time
	tokensRefill   time.Time
	lastAccess     time.Time // Used by cleanup to identify stale providers
}

// MemoryStore implements Store using in-memory storage. Suitable for a single
// process; use RedisStore when multiple processes share the same quota.
type MemoryStore struct {
	mu        sync.Mutex
	providers map[string]*buckets

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets the cleanup interval for removing stale provider
// state. Set to 0 to disable automatic cleanup.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(ms *MemoryStore) {
		ms.cleanupInterval = interval
	}
}

// NewMemoryStore creates a new in-memory store with optional cleanup.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	ms := &MemoryStore{
		providers:       make(map[string]*buckets),
		cleanupInterval: 5 * time.Minute,
		stopCleanup:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(ms)
	}

	if ms.cleanupInterval > 0 {
		go ms.cleanup()
	}

	return ms
}

// Consume implements Store.
func (ms *MemoryStore) Consume(ctx context.Context, provider string, requests, tokens int, config Config) (bool, State, error) {
	if err := ctx.Err(); err != nil {
		return false, State{}, err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	b, exists := ms.providers[provider]
	if !exists {
		b = &buckets{
			requests:       config.Requests.Capacity,
			tokens:         config.Tokens.Capacity,
			requestsRefill: now,
			tokensRefill:   now,
		}
		ms.providers[provider] = b
	}
	b.lastAccess = now

	b.requests, b.requestsRefill = refill(b.requests, b.requestsRefill, now, config.Requests)
	b.tokens, b.tokensRefill = refill(b.tokens, b.tokensRefill, now, config.Tokens)

	allowed := b.requests >= requests && b.tokens >= tokens
	if allowed {
		b.requests -= requests
		b.tokens -= tokens
	}

	state := State{
		RemainingRequests: b.requests,
		RemainingTokens:   b.tokens,
		RequestsResetAt:   b.requestsRefill.Add(config.Requests.RefillInterval),
		TokensResetAt:     b.tokensRefill.Add(config.Tokens.RefillInterval),
	}

	return allowed, state, nil
}

// Reset implements Store.
func (ms *MemoryStore) Reset(ctx context.Context, provider string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.providers, provider)
	return nil
}

// Close stops the background cleanup goroutine.
func (ms *MemoryStore) Close() error {
	ms.stopOnce.Do(func() {
		close(ms.stopCleanup)
	})
	return nil
}

// refill applies the token bucket algorithm to one bucket: calculate how many
// refill intervals have passed and add the corresponding units, capped at
// capacity.
func refill(units int, lastRefill, now time.Time, config BucketConfig) (int, time.Time) {
	elapsed := now.Sub(lastRefill)

	// Cap intervals to prevent integer overflow in high-capacity/low-rate scenarios
	maxIntervals := int64(config.Capacity/config.RefillRate + 1)
	intervals := min(int64(elapsed/config.RefillInterval), maxIntervals)

	if intervals <= 0 {
		return units, lastRefill
	}

	units = min(units+int(intervals)*config.RefillRate, config.Capacity)
	lastRefill = lastRefill.Add(time.Duration(intervals) * config.RefillInterval)
	if intervals >= maxIntervals {
		// The bucket was idle long enough to fill completely; realign the
		// refill clock so ResetAt stays meaningful.
		lastRefill = now
	}

	return units, lastRefill
}

// cleanup periodically removes provider state that has not been accessed for
// two cleanup intervals, keeping memory bounded for churning provider sets.
func (ms *MemoryStore) cleanup() {
	ticker := time.NewTicker(ms.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-2 * ms.cleanupInterval)

			ms.mu.Lock()
			for provider, b := range ms.providers {
				if b.lastAccess.Before(cutoff) {
					delete(ms.providers, provider)
				}
			}
			ms.mu.Unlock()
		case <-ms.stopCleanup:
			return
		}
	}
}
