package dispatcher

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Handle represents the eventual result of an enqueued request. It is settled
// exactly once: with the task's result, the task's own error, ErrCancelled, or
// ErrTimeout.
type Handle[T any] struct {
	id     uuid.UUID
	result T
	err    error
	once   sync.Once
	done   chan struct{}
}

func newHandle[T any](id uuid.UUID) *Handle[T] {
	return &Handle[T]{id: id, done: make(chan struct{})}
}

// ID returns the request identifier. It doubles as the cancellation token for
// Queue.Cancel; handles attached to a deduplicated request share the
// representative's ID.
func (h *Handle[T]) ID() uuid.UUID {
	return h.id
}

// Await blocks until the request settles and returns its result and error.
func (h *Handle[T]) Await() (T, error) {
	<-h.done
	return h.result, h.err
}

// AwaitWithTimeout waits for the request to settle with a timeout. If the
// timeout elapses first, returns ErrAwaitTimeout; the request itself keeps
// its place in the queue.
func (h *Handle[T]) AwaitWithTimeout(timeout time.Duration) (T, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-time.After(timeout):
		var zero T
		return zero, ErrAwaitTimeout
	}
}

// Done returns a channel closed when the request settles, for use in select
// statements.
func (h *Handle[T]) Done() <-chan struct{} {
	return h.done
}

// IsComplete checks if the request has settled without blocking.
func (h *Handle[T]) IsComplete() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// settle records the outcome and unblocks waiters. Safe to call more than
// once; only the first call wins.
func (h *Handle[T]) settle(result T, err error) {
	h.once.Do(func() {
		h.result = result
		h.err = err
		close(h.done)
	})
}
