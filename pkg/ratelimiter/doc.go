// Package ratelimiter provides provider-scoped admission control for outbound
// API calls using a dual token bucket algorithm.
//
// Each provider is throttled by two budgets at once: a request bucket consumed
// once per check, and a token bucket consumed by the caller's estimated cost.
// Both buckets refill at a steady rate up to a burst capacity. A check is
// admitted only when both budgets have room; nothing is consumed on denial, and
// the result carries an advisory RetryAfter telling the caller when enough
// units will have been refilled.
//
// # Basic Usage
//
// Create a limiter with a memory store:
//
//	config := ratelimiter.Config{
//		Requests: ratelimiter.BucketConfig{
//			Capacity:       60,          // Burst capacity
//			RefillRate:     1,           // Requests restored per interval
//			RefillInterval: time.Second, // Refill frequency
//		},
//		Tokens: ratelimiter.BucketConfig{
//			Capacity:       90000,
//			RefillRate:     1500,
//			RefillInterval: time.Second,
//		},
//	}
//
//	store := ratelimiter.NewMemoryStore()
//	defer store.Close()
//
//	limiter, err := ratelimiter.New(store, config)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := limiter.CheckLimit(ctx, "openai", 2000)
//	if err != nil {
//		// Handle store error
//		return
//	}
//
//	if !result.Allowed {
//		// Denied, check again after result.RetryAfter
//		return
//	}
//
// # Per-Provider Overrides
//
// Providers rarely share the same quotas. Override the defaults per provider:
//
//	limiter, err := ratelimiter.New(store, defaultConfig,
//		ratelimiter.WithProviderConfig("anthropic", anthropicConfig),
//	)
//
// # Storage Backends
//
// MemoryStore keeps bucket state in process memory and suits a single-process
// deployment. RedisStore keeps state in Redis so that multiple processes share
// one quota; bucket math runs server-side in a Lua script, making concurrent
// checks atomic.
//
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	store, err := ratelimiter.NewRedisStore(rdb)
//
// Both stores are safe for concurrent use.
package ratelimiter
