package dispatcher

import (
	"context"
)

// Provider identifies an upstream API whose rate limits are tracked separately.
type Provider string

// Providers recognized by default. The set can be replaced at construction
// time with WithProviders.
const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
)

// Priority determines dispatch order. All high-priority requests are eligible
// before any medium, and all medium before any low; enqueue order breaks ties
// within a level.
type Priority int8

const (
	PriorityLow    Priority = 25
	PriorityMedium Priority = 50
	PriorityHigh   Priority = 75

	PriorityDefault Priority = PriorityMedium
)

// Valid checks if the priority is one of the three recognized levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// String implements fmt.Stringer.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	}
	return "unknown"
}

// dispatchOrder is the bucket scan order used by the scheduler.
var dispatchOrder = [...]Priority{PriorityHigh, PriorityMedium, PriorityLow}

// Status represents the lifecycle state of a queued request. Requests move
// queued → processing → terminal; terminal states are final.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Task is a deferred unit of work, typically an outbound API call. The context
// is cancelled when the request times out or the queue is destroyed; stopping
// early is cooperative, a task that ignores the context keeps running but its
// result is discarded.
type Task[T any] func(ctx context.Context) (T, error)

// Stats is a point-in-time snapshot of queue activity.
type Stats struct {
	TotalEnqueued int              // Requests ever admitted to the queue
	CurrentSize   int              // Requests currently queued
	Processing    int              // Requests currently executing
	Completed     int
	Failed        int
	Cancelled     int
	Deduplicated  int              // Enqueue calls attached to an existing request
	ByPriority    map[Priority]int // Queued requests per priority level
	ByProvider    map[Provider]int // Queued requests per provider
}
