// Package config reads the service configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/go-multierror"
	logging "github.com/ipfs/go-log/v2"
	"github.com/tripsage/go-placephoto/display"
	"github.com/tripsage/go-placephoto/fallback"
	"github.com/tripsage/go-placephoto/photocache"
	"github.com/tripsage/go-placephoto/places"
)

// Config is the service configuration.
type Config struct {
	ListenAddr string `env:"PLACEPHOTO_LISTEN_ADDR" envDefault:":8080"`
	LogLevel   string `env:"PLACEPHOTO_LOG_LEVEL" envDefault:"info"`
	// FallbackImages replaces the bundled fallback images when set.
	FallbackImages []string `env:"PLACEPHOTO_FALLBACK_IMAGES" envSeparator:","`

	Places  Places  `envPrefix:"PLACEPHOTO_PLACES_"`
	Cache   Cache   `envPrefix:"PLACEPHOTO_CACHE_"`
	Display Display `envPrefix:"PLACEPHOTO_DISPLAY_"`
	GenAI   GenAI   `envPrefix:"PLACEPHOTO_GENAI_"`
}

// Places configures the imagery service client.
type Places struct {
	BaseURL      string        `env:"BASE_URL" envDefault:"https://places.googleapis.com/v1"`
	APIKey       string        `env:"API_KEY"`
	Timeout      time.Duration `env:"TIMEOUT" envDefault:"5s"`
	RetryMax     int           `env:"RETRY_MAX" envDefault:"2"`
	RetryWaitMin time.Duration `env:"RETRY_WAIT_MIN" envDefault:"200ms"`
	RetryWaitMax time.Duration `env:"RETRY_WAIT_MAX" envDefault:"2s"`
}

// Cache configures the photo cache.
type Cache struct {
	CacheFallbacks      bool          `env:"FALLBACKS" envDefault:"false"`
	ResolveTimeout      time.Duration `env:"RESOLVE_TIMEOUT" envDefault:"10s"`
	PrefetchConcurrency int           `env:"PREFETCH_CONCURRENCY" envDefault:"8"`
	// RedisURL enables the shared store when set.
	RedisURL string        `env:"REDIS_URL"`
	RedisTTL time.Duration `env:"REDIS_TTL" envDefault:"0s"`
}

// Display configures image display adapters.
type Display struct {
	MaxAttempts int           `env:"MAX_ATTEMPTS" envDefault:"3"`
	RetryDelay  time.Duration `env:"RETRY_DELAY" envDefault:"0s"`
}

// GenAI configures itinerary generation. Generation is disabled without an
// API key.
type GenAI struct {
	APIKey string `env:"API_KEY"`
	Model  string `env:"MODEL" envDefault:"gemini-1.5-flash"`
}

// Load reads and validates the configuration.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs error
	if c.ListenAddr == "" {
		errs = multierror.Append(errs, errors.New("listen address is required"))
	}
	if _, err := logging.LevelFromString(c.LogLevel); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("invalid log level %q", c.LogLevel))
	}
	if len(c.FallbackImages) != 0 {
		if _, err := fallback.New(c.FallbackImages...); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	if u, err := url.Parse(c.Places.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errs = multierror.Append(errs, fmt.Errorf("places base url must be an http or https url: %q", c.Places.BaseURL))
	}
	if c.Places.Timeout < 0 {
		errs = multierror.Append(errs, errors.New("places timeout must not be negative"))
	}
	if c.Places.RetryMax < 0 {
		errs = multierror.Append(errs, errors.New("places retry max must not be negative"))
	}
	if c.Places.RetryWaitMin > c.Places.RetryWaitMax {
		errs = multierror.Append(errs, errors.New("places retry wait min exceeds wait max"))
	}

	if c.Cache.ResolveTimeout < 0 {
		errs = multierror.Append(errs, errors.New("cache resolve timeout must not be negative"))
	}
	if c.Cache.PrefetchConcurrency < 1 {
		errs = multierror.Append(errs, errors.New("cache prefetch concurrency must be at least 1"))
	}
	if c.Cache.RedisURL != "" {
		if u, err := url.Parse(c.Cache.RedisURL); err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			errs = multierror.Append(errs, fmt.Errorf("cache redis url must be a redis or rediss url: %q", c.Cache.RedisURL))
		}
	}

	if c.Display.MaxAttempts < 1 {
		errs = multierror.Append(errs, errors.New("display max attempts must be at least 1"))
	}
	if c.Display.RetryDelay < 0 {
		errs = multierror.Append(errs, errors.New("display retry delay must not be negative"))
	}
	return errs
}

// FallbackPool returns the configured fallback pool.
func (c *Config) FallbackPool() (*fallback.Pool, error) {
	if len(c.FallbackImages) == 0 {
		return fallback.Default, nil
	}
	return fallback.New(c.FallbackImages...)
}

// PlacesOptions returns the imagery client options.
func (c *Config) PlacesOptions() []places.Option {
	return []places.Option{
		places.WithAPIKey(c.Places.APIKey),
		places.WithTimeout(c.Places.Timeout),
		places.WithRetry(c.Places.RetryMax, c.Places.RetryWaitMin, c.Places.RetryWaitMax),
	}
}

// CacheOptions returns the photo cache options, not including a shared store.
func (c *Config) CacheOptions() []photocache.Option {
	return []photocache.Option{
		photocache.WithFallbackCaching(c.Cache.CacheFallbacks),
		photocache.WithResolveTimeout(c.Cache.ResolveTimeout),
		photocache.WithPrefetchConcurrency(c.Cache.PrefetchConcurrency),
	}
}

// DisplayOptions returns the display adapter options.
func (c *Config) DisplayOptions(pool *fallback.Pool) []display.Option {
	opts := []display.Option{
		display.WithMaxAttempts(c.Display.MaxAttempts),
		display.WithRetryDelay(c.Display.RetryDelay),
	}
	if pool != nil {
		opts = append(opts, display.WithPool(pool))
	}
	return opts
}
