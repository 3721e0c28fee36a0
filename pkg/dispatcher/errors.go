package dispatcher

import "errors"

// Common errors
var (
	// ErrLimiterNil is returned when a nil rate limiter is provided
	ErrLimiterNil = errors.New("rate limiter cannot be nil")

	// ErrTaskNil is returned when attempting to enqueue a nil task
	ErrTaskNil = errors.New("task cannot be nil")

	// ErrInvalidConfig is returned when a construction option is out of range
	ErrInvalidConfig = errors.New("invalid queue configuration")

	// ErrInvalidProvider is returned when the provider is not in the known set
	ErrInvalidProvider = errors.New("unknown provider")

	// ErrInvalidCost is returned when the estimated cost is negative
	ErrInvalidCost = errors.New("cost must be non-negative")

	// ErrInvalidPriority is returned when priority is not one of the three levels
	ErrInvalidPriority = errors.New("priority must be low, medium or high")

	// ErrQueueFull is returned when the queue has reached its maximum size
	ErrQueueFull = errors.New("queue is full")

	// ErrQueueDestroyed is returned when enqueueing after Destroy
	ErrQueueDestroyed = errors.New("queue has been destroyed")

	// ErrCancelled settles a handle whose request was cancelled before dispatch
	ErrCancelled = errors.New("request cancelled")

	// ErrTimeout settles a handle whose request exceeded its processing budget
	ErrTimeout = errors.New("request timed out")

	// ErrAwaitTimeout is returned by AwaitWithTimeout when the handle is still pending
	ErrAwaitTimeout = errors.New("timed out waiting for result")
)
