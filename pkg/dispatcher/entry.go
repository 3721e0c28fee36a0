package dispatcher

import (
	"fmt"
	"hash/fnv"
	"reflect"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// entry is the internal record binding a task to its scheduling metadata.
// All fields are guarded by the queue mutex.
type entry[T any] struct {
	id         uuid.UUID
	task       Task[T]
	provider   Provider
	cost       int
	priority   Priority
	timeout    time.Duration
	metadata   map[string]string
	dedupKey   string
	status     Status
	enqueuedAt time.Time

	// retryAt defers eligibility after a rate-limit denial; zero means
	// eligible now.
	retryAt time.Time

	retryTimer   *time.Timer
	timeoutTimer *time.Timer

	// waiters holds every handle awaiting this request's result. The first
	// element belongs to the original enqueue call; the rest attached through
	// deduplication.
	waiters []*Handle[T]
}

// eligibleAt reports whether the entry may be offered to the rate limiter now.
func (e *entry[T]) eligibleAt(now time.Time) bool {
	return !e.retryAt.After(now)
}

// settleWaiters delivers the outcome to every attached handle.
func (e *entry[T]) settleWaiters(result T, err error) {
	for _, h := range e.waiters {
		h.settle(result, err)
	}
}

// stopTimers clears any pending retry and timeout timers.
func (e *entry[T]) stopTimers() {
	if e.retryTimer != nil {
		e.retryTimer.Stop()
		e.retryTimer = nil
	}
	if e.timeoutTimer != nil {
		e.timeoutTimer.Stop()
		e.timeoutTimer = nil
	}
}

// dedupKey derives the identity under which logically-identical concurrent
// requests collapse into one execution: the task's function identity combined
// with provider, cost, and caller metadata, FNV-1a hashed into a compact
// base36 form.
func dedupKey[T any](task Task[T], provider Provider, cost int, metadata map[string]string) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%x|%s|%d", reflect.ValueOf(task).Pointer(), provider, cost)
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "|%s=%s", k, metadata[k])
	}
	return strconv.FormatUint(h.Sum64(), 36)
}
