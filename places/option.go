package places

import (
	"fmt"
	"net/http"
	"time"
)

const (
	defaultTimeout   = 5 * time.Second
	defaultUserAgent = "go-placephoto"
)

type config struct {
	apiKey       string
	httpClient   *http.Client
	timeout      time.Duration
	userAgent    string
	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration
}

// Option is a function that sets a value in a config.
type Option func(*config) error

// getOpts creates a config and applies Options to it.
func getOpts(opts []Option) (config, error) {
	cfg := config{
		timeout:      defaultTimeout,
		userAgent:    defaultUserAgent,
		retryWaitMin: 200 * time.Millisecond,
		retryWaitMax: 2 * time.Second,
	}
	for i, opt := range opts {
		if err := opt(&cfg); err != nil {
			return config{}, fmt.Errorf("option %d failed: %s", i, err)
		}
	}
	return cfg, nil
}

// WithAPIKey sets the imagery service credential. Without one the client
// still constructs, but HasCredential reports false and callers are expected
// to fall back without issuing requests.
func WithAPIKey(key string) Option {
	return func(cfg *config) error {
		cfg.apiKey = key
		return nil
	}
}

// WithClient allows creation of the http client using an underlying network
// round tripper / client. The client's own Timeout is left untouched.
func WithClient(c *http.Client) Option {
	return func(cfg *config) error {
		if c != nil {
			cfg.httpClient = c
		}
		return nil
	}
}

// WithTimeout sets the hard limit for a single request, including any
// transport-level retries. A value of 0 disables the limit.
//
// Default is 5 seconds.
func WithTimeout(timeout time.Duration) Option {
	return func(cfg *config) error {
		if timeout < 0 {
			return fmt.Errorf("negative timeout: %s", timeout)
		}
		cfg.timeout = timeout
		return nil
	}
}

// WithRetry enables transport-level retries with exponential backoff for
// connection errors, 429 and 5xx responses. A max of 0 disables retries.
//
// Default is disabled.
func WithRetry(max int, waitMin, waitMax time.Duration) Option {
	return func(cfg *config) error {
		if max < 0 {
			return fmt.Errorf("negative retry count: %d", max)
		}
		if waitMin > waitMax {
			return fmt.Errorf("retry wait min %s exceeds max %s", waitMin, waitMax)
		}
		cfg.retryMax = max
		cfg.retryWaitMin = waitMin
		cfg.retryWaitMax = waitMax
		return nil
	}
}

// WithUserAgent sets the value used for the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(cfg *config) error {
		cfg.userAgent = userAgent
		return nil
	}
}
