package dispatcher

import (
	"log/slog"
	"time"
)

// Option is a functional option for configuring a queue
type Option func(*options)

type options struct {
	maxSize            int
	requestTimeout     time.Duration
	maxConcurrent      int
	processingInterval time.Duration
	deduplication      bool
	providers          []Provider
	logger             *slog.Logger
}

func defaultOptions() *options {
	return &options{
		maxSize:            1000,
		requestTimeout:     30 * time.Second,
		maxConcurrent:      10,
		processingInterval: 100 * time.Millisecond,
		providers:          []Provider{ProviderOpenAI, ProviderAnthropic, ProviderGoogle},
		logger:             slog.Default(),
	}
}

// WithMaxSize sets the queue capacity. Enqueue fails with ErrQueueFull once
// this many requests are queued.
func WithMaxSize(n int) Option {
	return func(o *options) {
		o.maxSize = n
	}
}

// WithRequestTimeout sets the default per-request processing timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) {
		o.requestTimeout = d
	}
}

// WithMaxConcurrentRequests sets how many requests may execute simultaneously.
func WithMaxConcurrentRequests(n int) Option {
	return func(o *options) {
		o.maxConcurrent = n
	}
}

// WithProcessingInterval sets the scheduler tick period.
func WithProcessingInterval(d time.Duration) Option {
	return func(o *options) {
		o.processingInterval = d
	}
}

// WithDeduplication enables collapsing of logically-identical concurrent
// requests into a single execution.
func WithDeduplication(enabled bool) Option {
	return func(o *options) {
		o.deduplication = enabled
	}
}

// WithProviders replaces the default set of recognized providers.
func WithProviders(providers ...Provider) Option {
	return func(o *options) {
		o.providers = providers
	}
}

// WithLogger sets the logger for the queue.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithConfig applies an environment-derived Config. Explicit options given
// after it still take precedence.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.maxSize = cfg.MaxSize
		o.requestTimeout = cfg.RequestTimeout
		o.maxConcurrent = cfg.MaxConcurrentRequests
		o.processingInterval = cfg.ProcessingInterval
		o.deduplication = cfg.EnableDeduplication
	}
}
