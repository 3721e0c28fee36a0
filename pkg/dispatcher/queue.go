package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/dispatchq/pkg/ratelimiter"
)

// Queue is a rate-limited priority request dispatcher. Enqueued tasks are
// dispatched highest priority first (FIFO within a level), each one admitted
// by the rate limiter before it may consume one of a fixed number of
// concurrency slots. Denied requests stay queued and are re-checked after the
// limiter's advisory delay without blocking other requests.
type Queue[T any] struct {
	limiter ratelimiter.Limiter
	logger  *slog.Logger

	maxSize            int
	requestTimeout     time.Duration
	maxConcurrent      int
	processingInterval time.Duration
	deduplication      bool
	providers          map[Provider]struct{}

	mu         sync.Mutex
	entries    map[uuid.UUID]*entry[T]
	buckets    map[Priority][]*entry[T]
	dedup      map[string]*entry[T]
	size       int
	processing int
	paused     bool
	destroyed  bool

	totalEnqueued int
	completed     int
	failed        int
	cancelled     int
	deduplicated  int

	ctx    context.Context
	cancel context.CancelFunc
	kick   chan struct{}
}

// New creates a queue and starts its scheduler loop. The queue runs until
// Destroy is called.
func New[T any](limiter ratelimiter.Limiter, opts ...Option) (*Queue[T], error) {
	if limiter == nil {
		return nil, ErrLimiterNil
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	if options.maxSize <= 0 {
		return nil, fmt.Errorf("%w: max size must be positive, got %d", ErrInvalidConfig, options.maxSize)
	}
	if options.requestTimeout <= 0 {
		return nil, fmt.Errorf("%w: request timeout must be positive, got %v", ErrInvalidConfig, options.requestTimeout)
	}
	if options.maxConcurrent <= 0 {
		return nil, fmt.Errorf("%w: max concurrent requests must be positive, got %d", ErrInvalidConfig, options.maxConcurrent)
	}
	if options.processingInterval <= 0 {
		return nil, fmt.Errorf("%w: processing interval must be positive, got %v", ErrInvalidConfig, options.processingInterval)
	}
	if len(options.providers) == 0 {
		return nil, fmt.Errorf("%w: at least one provider is required", ErrInvalidConfig)
	}

	providers := make(map[Provider]struct{}, len(options.providers))
	for _, p := range options.providers {
		providers[p] = struct{}{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	q := &Queue[T]{
		limiter:            limiter,
		logger:             options.logger,
		maxSize:            options.maxSize,
		requestTimeout:     options.requestTimeout,
		maxConcurrent:      options.maxConcurrent,
		processingInterval: options.processingInterval,
		deduplication:      options.deduplication,
		providers:          providers,
		entries:            make(map[uuid.UUID]*entry[T]),
		buckets:            make(map[Priority][]*entry[T]),
		dedup:              make(map[string]*entry[T]),
		ctx:                ctx,
		cancel:             cancel,
		kick:               make(chan struct{}, 1),
	}

	go q.run()

	return q, nil
}

// Enqueue validates and admits a task to the queue, returning a handle that
// settles with the task's result once it has been dispatched and executed.
// Validation failures, ErrQueueFull, and ErrQueueDestroyed are returned
// synchronously; no request is created in those cases.
func (q *Queue[T]) Enqueue(task Task[T], provider Provider, cost int, opts ...EnqueueOption) (*Handle[T], error) {
	if task == nil {
		return nil, ErrTaskNil
	}

	options := &enqueueOptions{
		priority: PriorityDefault,
		timeout:  q.requestTimeout,
	}
	for _, opt := range opts {
		opt(options)
	}

	q.mu.Lock()

	if q.destroyed {
		q.mu.Unlock()
		return nil, ErrQueueDestroyed
	}
	if _, ok := q.providers[provider]; !ok {
		q.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrInvalidProvider, provider)
	}
	if cost < 0 {
		q.mu.Unlock()
		return nil, fmt.Errorf("%w, got %d", ErrInvalidCost, cost)
	}
	if !options.priority.Valid() {
		q.mu.Unlock()
		return nil, fmt.Errorf("%w, got %d", ErrInvalidPriority, options.priority)
	}

	var key string
	if q.deduplication {
		key = dedupKey(task, provider, cost, options.metadata)
		if rep, ok := q.dedup[key]; ok {
			// Attach as an additional waiter; the queue does not grow.
			h := newHandle[T](rep.id)
			rep.waiters = append(rep.waiters, h)
			q.deduplicated++
			q.mu.Unlock()

			q.logger.Debug("attached to equivalent request",
				slog.String("request_id", rep.id.String()),
				slog.String("provider", string(provider)))
			return h, nil
		}
	}

	if q.size >= q.maxSize {
		q.mu.Unlock()
		return nil, ErrQueueFull
	}

	id := uuid.New()
	h := newHandle[T](id)
	e := &entry[T]{
		id:         id,
		task:       task,
		provider:   provider,
		cost:       cost,
		priority:   options.priority,
		timeout:    options.timeout,
		metadata:   options.metadata,
		dedupKey:   key,
		status:     StatusQueued,
		enqueuedAt: time.Now(),
		waiters:    []*Handle[T]{h},
	}

	q.entries[id] = e
	q.buckets[e.priority] = append(q.buckets[e.priority], e)
	if key != "" {
		q.dedup[key] = e
	}
	q.size++
	q.totalEnqueued++

	q.mu.Unlock()
	q.wake()

	q.logger.Debug("request enqueued",
		slog.String("request_id", id.String()),
		slog.String("provider", string(provider)),
		slog.String("priority", e.priority.String()),
		slog.Int("cost", cost))

	return h, nil
}

// Cancel removes a queued request and settles its handle with ErrCancelled.
// Returns false if the request is unknown, already processing, or already
// settled; in-flight requests cannot be interrupted.
func (q *Queue[T]) Cancel(id uuid.UUID) bool {
	q.mu.Lock()

	e, ok := q.entries[id]
	if !ok || e.status != StatusQueued {
		q.mu.Unlock()
		return false
	}

	q.removeQueuedLocked(e)
	q.finalizeLocked(e, StatusCancelled)
	var zero T
	e.settleWaiters(zero, ErrCancelled)

	q.mu.Unlock()

	q.logger.Debug("request cancelled", slog.String("request_id", id.String()))
	return true
}

// CancelMultiple cancels a batch of requests and reports per-request success
// in input order.
func (q *Queue[T]) CancelMultiple(ids []uuid.UUID) []bool {
	results := make([]bool, len(ids))
	for i, id := range ids {
		results[i] = q.Cancel(id)
	}
	return results
}

// CancelAll cancels every currently queued request and returns the count.
// Processing requests are untouched.
func (q *Queue[T]) CancelAll() int {
	q.mu.Lock()

	count := 0
	var zero T
	for _, p := range dispatchOrder {
		for _, e := range q.buckets[p] {
			q.finalizeLocked(e, StatusCancelled)
			e.settleWaiters(zero, ErrCancelled)
			count++
		}
		q.buckets[p] = nil
	}
	q.size = 0

	q.mu.Unlock()

	if count > 0 {
		q.logger.Debug("queued requests cancelled", slog.Int("count", count))
	}
	return count
}

// Clear cancels every queued request. Equivalent to CancelAll with the count
// discarded.
func (q *Queue[T]) Clear() {
	q.CancelAll()
}

// Pause stops the scheduler from starting new dispatches. Requests already
// processing run to completion; queued requests keep their order.
func (q *Queue[T]) Pause() {
	q.mu.Lock()
	q.paused = true
	q.mu.Unlock()

	q.logger.Debug("queue paused")
}

// Resume restarts dispatching from the current priority/FIFO order.
func (q *Queue[T]) Resume() {
	q.mu.Lock()
	q.paused = false
	q.mu.Unlock()

	q.wake()
	q.logger.Debug("queue resumed")
}

// Destroy cancels every outstanding request, stops the scheduler loop and all
// timers, and makes the queue permanently unusable. Idempotent. Results of
// tasks still running when Destroy is called are discarded.
func (q *Queue[T]) Destroy() {
	q.mu.Lock()

	if q.destroyed {
		q.mu.Unlock()
		return
	}
	q.destroyed = true

	var zero T
	for _, p := range dispatchOrder {
		for _, e := range q.buckets[p] {
			q.finalizeLocked(e, StatusCancelled)
			e.settleWaiters(zero, ErrCancelled)
		}
		q.buckets[p] = nil
	}
	q.size = 0

	// Only processing requests remain in the registry at this point.
	for _, e := range q.entries {
		q.finalizeLocked(e, StatusCancelled)
		e.settleWaiters(zero, ErrCancelled)
	}
	q.processing = 0

	q.mu.Unlock()

	// Stops the scheduler loop and cancels in-flight task contexts.
	q.cancel()

	q.logger.Info("queue destroyed")
}

// Stats returns a point-in-time snapshot of queue activity.
func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := Stats{
		TotalEnqueued: q.totalEnqueued,
		CurrentSize:   q.size,
		Processing:    q.processing,
		Completed:     q.completed,
		Failed:        q.failed,
		Cancelled:     q.cancelled,
		Deduplicated:  q.deduplicated,
		ByPriority:    make(map[Priority]int, len(dispatchOrder)),
		ByProvider:    make(map[Provider]int, len(q.providers)),
	}

	for _, p := range dispatchOrder {
		s.ByPriority[p] = len(q.buckets[p])
		for _, e := range q.buckets[p] {
			s.ByProvider[e.provider]++
		}
	}

	return s
}

// Size returns the number of currently queued requests.
func (q *Queue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// IsEmpty reports whether no requests are queued.
func (q *Queue[T]) IsEmpty() bool {
	return q.Size() == 0
}

// IsPaused reports whether dispatching is paused.
func (q *Queue[T]) IsPaused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}

// Run returns a function suitable for errgroup: it blocks until the context
// is cancelled, then destroys the queue.
func (q *Queue[T]) Run(ctx context.Context) func() error {
	return func() error {
		<-ctx.Done()
		q.Destroy()
		return nil
	}
}

// wake triggers a scheduling pass without waiting for the next periodic tick.
func (q *Queue[T]) wake() {
	select {
	case q.kick <- struct{}{}:
	default:
	}
}

// run is the scheduler loop. A periodic ticker guarantees progress; the kick
// channel cuts latency after enqueues, freed slots, resumes, and rate-limit
// retry timers.
func (q *Queue[T]) run() {
	ticker := time.NewTicker(q.processingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
		case <-q.kick:
		}
		q.dispatch()
	}
}

// dispatch fills free concurrency slots with eligible requests, highest
// priority first. Only the scheduler goroutine calls it.
func (q *Queue[T]) dispatch() {
	for {
		q.mu.Lock()
		if q.paused || q.destroyed || q.processing >= q.maxConcurrent {
			q.mu.Unlock()
			return
		}

		e := q.nextEligibleLocked(time.Now())
		if e == nil {
			q.mu.Unlock()
			return
		}
		provider, cost := e.provider, e.cost
		q.mu.Unlock()

		// The admission check runs outside the critical section; it may hit
		// the network when limiter state lives in Redis.
		result, err := q.limiter.CheckLimit(q.ctx, string(provider), cost)

		q.mu.Lock()
		if q.destroyed || e.status != StatusQueued {
			// Cancelled or destroyed while the check was in flight.
			q.mu.Unlock()
			continue
		}

		if err != nil {
			// Limiter infrastructure failure settles only this request; it is
			// not retried here, denial is the only condition the queue retries.
			q.removeQueuedLocked(e)
			q.finalizeLocked(e, StatusFailed)
			var zero T
			e.settleWaiters(zero, err)
			q.mu.Unlock()

			q.logger.Error("rate limit check failed",
				slog.String("request_id", e.id.String()),
				slog.String("provider", string(provider)),
				slog.String("error", err.Error()))
			continue
		}

		if !result.Allowed {
			q.deferLocked(e, result.RetryAfter)
			q.mu.Unlock()

			q.logger.Debug("request deferred by rate limiter",
				slog.String("request_id", e.id.String()),
				slog.String("provider", string(provider)),
				slog.Duration("retry_after", result.RetryAfter),
				slog.String("reason", result.Reason))
			continue
		}

		q.removeQueuedLocked(e)
		e.status = StatusProcessing
		q.processing++
		e.timeoutTimer = time.AfterFunc(e.timeout, func() { q.expire(e.id) })
		q.mu.Unlock()

		q.logger.Debug("request dispatched",
			slog.String("request_id", e.id.String()),
			slog.String("provider", string(provider)),
			slog.String("priority", e.priority.String()))

		go q.execute(e)
	}
}

// nextEligibleLocked returns the next queued request in priority/FIFO order
// that is not waiting out a rate-limit denial.
func (q *Queue[T]) nextEligibleLocked(now time.Time) *entry[T] {
	for _, p := range dispatchOrder {
		for _, e := range q.buckets[p] {
			if e.eligibleAt(now) {
				return e
			}
		}
	}
	return nil
}

// deferLocked schedules a re-check of a denied request after the limiter's
// advisory delay. The request stays queued and keeps its FIFO position.
func (q *Queue[T]) deferLocked(e *entry[T], retryAfter time.Duration) {
	// A zero advisory would spin the scheduler; fall back to one tick.
	if retryAfter <= 0 {
		retryAfter = q.processingInterval
	}

	e.retryAt = time.Now().Add(retryAfter)
	if e.retryTimer != nil {
		e.retryTimer.Stop()
	}
	e.retryTimer = time.AfterFunc(retryAfter, q.wake)
}

// execute runs the task on its own goroutine so a slow or hung task never
// blocks scheduling of other requests.
func (q *Queue[T]) execute(e *entry[T]) {
	ctx, cancel := context.WithTimeout(q.ctx, e.timeout)
	defer cancel()

	start := time.Now()

	var result T
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic in task: %v", r)
			}
		}()
		result, err = e.task(ctx)
	}()

	q.mu.Lock()
	if e.status != StatusProcessing {
		// Timed out or destroyed while running; the late result is discarded.
		q.mu.Unlock()
		return
	}
	q.processing--
	if err != nil {
		q.finalizeLocked(e, StatusFailed)
	} else {
		q.finalizeLocked(e, StatusCompleted)
	}
	e.settleWaiters(result, err)
	q.mu.Unlock()

	q.wake()

	if err != nil {
		q.logger.Error("request failed",
			slog.String("request_id", e.id.String()),
			slog.String("provider", string(e.provider)),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return
	}
	q.logger.Info("request completed",
		slog.String("request_id", e.id.String()),
		slog.String("provider", string(e.provider)),
		slog.Duration("duration", time.Since(start)))
}

// expire fires when a processing request exceeds its timeout. The handle
// settles with ErrTimeout; the task itself is not preempted but its eventual
// result is discarded.
func (q *Queue[T]) expire(id uuid.UUID) {
	q.mu.Lock()
	e, ok := q.entries[id]
	if !ok || e.status != StatusProcessing {
		q.mu.Unlock()
		return
	}

	q.processing--
	q.finalizeLocked(e, StatusFailed)
	var zero T
	e.settleWaiters(zero, ErrTimeout)
	q.mu.Unlock()

	q.wake()

	q.logger.Warn("request timed out",
		slog.String("request_id", id.String()),
		slog.String("provider", string(e.provider)),
		slog.Duration("timeout", e.timeout))
}

// removeQueuedLocked takes a queued request out of its priority bucket.
func (q *Queue[T]) removeQueuedLocked(e *entry[T]) {
	q.buckets[e.priority] = slices.DeleteFunc(q.buckets[e.priority], func(other *entry[T]) bool {
		return other == e
	})
	q.size--
}

// finalizeLocked moves a request into a terminal state: updates counters,
// drops it from the registry and the dedup map, and clears its timers. A
// request never leaves a terminal state.
func (q *Queue[T]) finalizeLocked(e *entry[T], status Status) {
	e.status = status
	e.stopTimers()

	switch status {
	case StatusCompleted:
		q.completed++
	case StatusFailed:
		q.failed++
	case StatusCancelled:
		q.cancelled++
	}

	delete(q.entries, e.id)
	if e.dedupKey != "" && q.dedup[e.dedupKey] == e {
		delete(q.dedup, e.dedupKey)
	}
}
