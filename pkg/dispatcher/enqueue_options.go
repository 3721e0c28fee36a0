package dispatcher

import (
	"maps"
	"time"
)

// EnqueueOption is a functional option for a single enqueue call
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	priority Priority
	timeout  time.Duration
	metadata map[string]string
}

// WithPriority sets the request priority. Defaults to PriorityMedium.
func WithPriority(p Priority) EnqueueOption {
	return func(o *enqueueOptions) {
		o.priority = p
	}
}

// WithTimeout overrides the queue-wide processing timeout for this request.
// Non-positive values are ignored.
func WithTimeout(d time.Duration) EnqueueOption {
	return func(o *enqueueOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithMetadata attaches caller metadata to the request. Metadata participates
// in the deduplication key, so requests with differing metadata never collapse.
func WithMetadata(metadata map[string]string) EnqueueOption {
	return func(o *enqueueOptions) {
		if len(metadata) > 0 {
			o.metadata = maps.Clone(metadata)
		}
	}
}
