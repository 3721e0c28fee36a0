// Package dispatcher provides a rate-limited priority request queue for
// outbound calls to external APIs.
//
// The package is organised around three main pieces:
//
//   - Queue    — accepts tasks, orders them by priority, and dispatches them
//     under a fixed concurrency budget
//   - Handle   — the caller's future, settled exactly once with the task's
//     result or a rejection
//   - Limiter  — the admission-control contract from pkg/ratelimiter,
//     consulted before every dispatch
//
// A single scheduler goroutine drives all admission decisions. On each pass it
// selects the highest-priority queued request (FIFO within a level), asks the
// rate limiter whether the request's provider and estimated cost may proceed,
// and either starts execution on its own goroutine or defers the request until
// the limiter's advisory delay has passed. A denied request never blocks its
// siblings: requests behind it remain eligible on the same pass.
//
// # Lifecycle
//
// Requests move queued → processing → {completed, failed, cancelled}. Only
// queued requests can be cancelled; in-flight tasks are never preempted, a
// request that exceeds its processing timeout settles with ErrTimeout and the
// task's eventual result is discarded. Terminal states are final.
//
// # Usage
//
//	store := ratelimiter.NewMemoryStore()
//	defer store.Close()
//
//	limiter, _ := ratelimiter.New(store, limitConfig)
//
//	q, err := dispatcher.New[string](limiter,
//	    dispatcher.WithMaxConcurrentRequests(4),
//	    dispatcher.WithDeduplication(true),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer q.Destroy()
//
//	handle, err := q.Enqueue(func(ctx context.Context) (string, error) {
//	    return callProvider(ctx)
//	}, dispatcher.ProviderOpenAI, 2000, dispatcher.WithPriority(dispatcher.PriorityHigh))
//	if err != nil {
//	    // ErrQueueFull, ErrQueueDestroyed, or a validation error
//	    return
//	}
//
//	result, err := handle.Await()
//
// # Backpressure
//
// Enqueue never blocks. Once MaxSize requests are queued it fails synchronously
// with ErrQueueFull, which is the signal for upstream code to shed load instead
// of growing the queue without bound. Validation errors (ErrInvalidProvider,
// ErrInvalidCost, ErrInvalidPriority) are likewise synchronous and distinct
// from the asynchronous rejections delivered through the handle (ErrCancelled,
// ErrTimeout, or the task's own error).
//
// # Deduplication
//
// With WithDeduplication enabled, concurrent enqueues of the same task
// function with equal provider, cost, and metadata collapse into one
// execution; every caller's handle resolves with the shared result. The
// mapping is dropped as soon as the representative request settles, so a
// later identical enqueue always gets a fresh execution.
package dispatcher
