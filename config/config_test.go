package config_test

import (
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/require"
	"github.com/tripsage/go-placephoto/config"
	"github.com/tripsage/go-placephoto/display"
	"github.com/tripsage/go-placephoto/fallback"
	"github.com/tripsage/go-placephoto/photocache"
	"github.com/tripsage/go-placephoto/places"
	"github.com/tripsage/go-placephoto/resolver"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.ListenAddr)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, places.DefaultBaseURL, cfg.Places.BaseURL)
	require.Equal(t, 5*time.Second, cfg.Places.Timeout)
	require.Equal(t, 2, cfg.Places.RetryMax)
	require.Equal(t, 10*time.Second, cfg.Cache.ResolveTimeout)
	require.Equal(t, 8, cfg.Cache.PrefetchConcurrency)
	require.False(t, cfg.Cache.CacheFallbacks)
	require.Empty(t, cfg.Cache.RedisURL)
	require.Equal(t, 3, cfg.Display.MaxAttempts)
	require.Empty(t, cfg.GenAI.APIKey)

	pool, err := cfg.FallbackPool()
	require.NoError(t, err)
	require.Same(t, fallback.Default, pool)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PLACEPHOTO_LISTEN_ADDR", "127.0.0.1:9000")
	t.Setenv("PLACEPHOTO_LOG_LEVEL", "debug")
	t.Setenv("PLACEPHOTO_FALLBACK_IMAGES", "/a.jpg,/b.jpg")
	t.Setenv("PLACEPHOTO_PLACES_API_KEY", "secret")
	t.Setenv("PLACEPHOTO_PLACES_RETRY_MAX", "0")
	t.Setenv("PLACEPHOTO_CACHE_FALLBACKS", "true")
	t.Setenv("PLACEPHOTO_CACHE_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("PLACEPHOTO_DISPLAY_MAX_ATTEMPTS", "5")
	t.Setenv("PLACEPHOTO_GENAI_API_KEY", "gen")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
	require.Equal(t, "secret", cfg.Places.APIKey)
	require.Zero(t, cfg.Places.RetryMax)
	require.True(t, cfg.Cache.CacheFallbacks)
	require.Equal(t, "redis://localhost:6379/0", cfg.Cache.RedisURL)
	require.Equal(t, 5, cfg.Display.MaxAttempts)
	require.Equal(t, "gen", cfg.GenAI.APIKey)

	pool, err := cfg.FallbackPool()
	require.NoError(t, err)
	require.Equal(t, []string{"/a.jpg", "/b.jpg"}, pool.All())

	client, err := places.New(cfg.Places.BaseURL, cfg.PlacesOptions()...)
	require.NoError(t, err)
	require.True(t, client.HasCredential())

	cache, err := photocache.New(resolver.New(client, pool), cfg.CacheOptions()...)
	require.NoError(t, err)
	_, err = display.New(cache, "p1", cfg.DisplayOptions(pool)...)
	require.NoError(t, err)
}

func TestLoadParseError(t *testing.T) {
	t.Setenv("PLACEPHOTO_PLACES_TIMEOUT", "soon")
	_, err := config.Load()
	require.ErrorContains(t, err, "parse env:")
}

func TestValidateCollectsAll(t *testing.T) {
	t.Setenv("PLACEPHOTO_LOG_LEVEL", "loud")
	t.Setenv("PLACEPHOTO_PLACES_BASE_URL", "ftp://example.com")
	t.Setenv("PLACEPHOTO_PLACES_RETRY_WAIT_MIN", "5s")
	t.Setenv("PLACEPHOTO_CACHE_PREFETCH_CONCURRENCY", "0")
	t.Setenv("PLACEPHOTO_CACHE_REDIS_URL", "http://localhost")
	t.Setenv("PLACEPHOTO_DISPLAY_MAX_ATTEMPTS", "0")

	_, err := config.Load()
	require.Error(t, err)
	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	require.Len(t, merr.Errors, 6)
}
