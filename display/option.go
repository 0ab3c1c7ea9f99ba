package display

import (
	"errors"
	"fmt"
	"time"

	"github.com/tripsage/go-placephoto/fallback"
	"github.com/tripsage/go-placephoto/retry"
)

type config struct {
	maxAttempts int
	pool        *fallback.Pool
	retryDelay  time.Duration
}

// Option is a function that sets a value in a config.
type Option func(*config) error

// getOpts creates a config and applies Options to it.
func getOpts(opts []Option) (config, error) {
	cfg := config{
		maxAttempts: retry.DefaultMax,
		pool:        fallback.Default,
	}
	for i, opt := range opts {
		if err := opt(&cfg); err != nil {
			return config{}, fmt.Errorf("option %d failed: %s", i, err)
		}
	}
	return cfg, nil
}

// WithMaxAttempts sets the number of attempts made to show a place photo
// before settling on a fallback image.
//
// Default is 3.
func WithMaxAttempts(n int) Option {
	return func(cfg *config) error {
		if n < 1 {
			return fmt.Errorf("max attempts must be at least 1, got %d", n)
		}
		cfg.maxAttempts = n
		return nil
	}
}

// WithPool sets the pool that fallback images are chosen from when the
// adapter gives up on an image that failed to load.
func WithPool(pool *fallback.Pool) Option {
	return func(cfg *config) error {
		if pool == nil {
			return errors.New("nil fallback pool")
		}
		cfg.pool = pool
		return nil
	}
}

// WithRetryDelay sets the time to wait before each retry.
//
// Default is 0.
func WithRetryDelay(d time.Duration) Option {
	return func(cfg *config) error {
		if d < 0 {
			return errors.New("negative retry delay")
		}
		cfg.retryDelay = d
		return nil
	}
}
