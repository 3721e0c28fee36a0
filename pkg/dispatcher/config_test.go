package dispatcher_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/dispatchq/pkg/dispatcher"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := dispatcher.LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, 1000, cfg.MaxSize)
		assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
		assert.Equal(t, 10, cfg.MaxConcurrentRequests)
		assert.Equal(t, 100*time.Millisecond, cfg.ProcessingInterval)
		assert.False(t, cfg.EnableDeduplication)
	})

	t.Run("from environment", func(t *testing.T) {
		t.Setenv("DISPATCHQ_MAX_SIZE", "50")
		t.Setenv("DISPATCHQ_REQUEST_TIMEOUT", "5s")
		t.Setenv("DISPATCHQ_MAX_CONCURRENT_REQUESTS", "3")
		t.Setenv("DISPATCHQ_PROCESSING_INTERVAL", "250ms")
		t.Setenv("DISPATCHQ_ENABLE_DEDUPLICATION", "true")

		cfg, err := dispatcher.LoadConfig()
		require.NoError(t, err)

		assert.Equal(t, 50, cfg.MaxSize)
		assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
		assert.Equal(t, 3, cfg.MaxConcurrentRequests)
		assert.Equal(t, 250*time.Millisecond, cfg.ProcessingInterval)
		assert.True(t, cfg.EnableDeduplication)
	})

	t.Run("queue from config", func(t *testing.T) {
		cfg := dispatcher.Config{
			MaxSize:               1,
			RequestTimeout:        time.Second,
			MaxConcurrentRequests: 1,
			ProcessingInterval:    5 * time.Millisecond,
		}

		q, err := dispatcher.New[string](allowAll(), dispatcher.WithConfig(cfg))
		require.NoError(t, err)
		defer q.Destroy()

		q.Pause()
		_, err = q.Enqueue(echoTask("a"), dispatcher.ProviderOpenAI, 10)
		require.NoError(t, err)
		_, err = q.Enqueue(echoTask("b"), dispatcher.ProviderOpenAI, 10)
		assert.ErrorIs(t, err, dispatcher.ErrQueueFull)
	})
}
