package photocache

import (
	"errors"
	"fmt"
	"time"
)

const (
	defaultResolveTimeout      = 10 * time.Second
	defaultPrefetchConcurrency = 8
)

type config struct {
	cacheFallbacks      bool
	prefetchConcurrency int
	resolveTimeout      time.Duration
	store               Store
}

// Option is a function that sets a value in a config.
type Option func(*config) error

// getOpts creates a config and applies Options to it.
func getOpts(opts []Option) (config, error) {
	cfg := config{
		prefetchConcurrency: defaultPrefetchConcurrency,
		resolveTimeout:      defaultResolveTimeout,
	}
	for i, opt := range opts {
		if err := opt(&cfg); err != nil {
			return config{}, fmt.Errorf("option %d failed: %s", i, err)
		}
	}
	return cfg, nil
}

// WithFallbackCaching sets whether fallback results are stored in the cache.
// When false, a place that failed to resolve is tried again by the next
// request for it, so that transient failures heal on their own. When true, the
// first fallback chosen for a place is shown for the life of the cache.
//
// Default is false.
func WithFallbackCaching(enable bool) Option {
	return func(cfg *config) error {
		cfg.cacheFallbacks = enable
		return nil
	}
}

// WithPrefetchConcurrency sets the maximum number of resolutions that Prefetch
// and ResolveAll run at once.
//
// Default is 8.
func WithPrefetchConcurrency(n int) Option {
	return func(cfg *config) error {
		if n < 1 {
			return fmt.Errorf("prefetch concurrency must be at least 1, got %d", n)
		}
		cfg.prefetchConcurrency = n
		return nil
	}
}

// WithResolveTimeout sets the time limit for a single shared resolution. The
// shared resolution is not canceled when the callers waiting on it give up, so
// this is what bounds it. A value of 0 removes the limit.
//
// Default is 10 seconds.
func WithResolveTimeout(d time.Duration) Option {
	return func(cfg *config) error {
		if d < 0 {
			return errors.New("negative resolve timeout")
		}
		cfg.resolveTimeout = d
		return nil
	}
}

// WithSharedStore sets a Store that is shared with other processes. Local
// misses are looked up in the store before resolving, and successful
// resolutions are written to it.
func WithSharedStore(store Store) Option {
	return func(cfg *config) error {
		cfg.store = store
		return nil
	}
}
