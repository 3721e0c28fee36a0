package dispatcher

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds queue configuration sourced from the environment.
type Config struct {
	MaxSize               int           `env:"DISPATCHQ_MAX_SIZE" envDefault:"1000"`
	RequestTimeout        time.Duration `env:"DISPATCHQ_REQUEST_TIMEOUT" envDefault:"30s"`
	MaxConcurrentRequests int           `env:"DISPATCHQ_MAX_CONCURRENT_REQUESTS" envDefault:"10"`
	ProcessingInterval    time.Duration `env:"DISPATCHQ_PROCESSING_INTERVAL" envDefault:"100ms"`
	EnableDeduplication   bool          `env:"DISPATCHQ_ENABLE_DEDUPLICATION" envDefault:"false"`
}

// LoadConfig parses queue configuration from environment variables, loading a
// .env file first when one exists.
func LoadConfig() (Config, error) {
	// Ignore errors - the .env file might not exist and that's ok
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Join(ErrInvalidConfig, err)
	}
	return cfg, nil
}
