package redisstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/tripsage/go-placephoto/photocache"
	"github.com/tripsage/go-placephoto/photocache/redisstore"
	"github.com/tripsage/go-placephoto/resolver"
)

func startRedis(t *testing.T) string {
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	return url
}

func TestNewOptions(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	_, err := redisstore.New(client, redisstore.WithTTL(-time.Second))
	require.ErrorContains(t, err, "option 0 failed")

	_, err = redisstore.Dial(context.Background(), "not-a-url")
	require.ErrorContains(t, err, "invalid redis url")
}

func TestStore(t *testing.T) {
	url := startRedis(t)
	ctx := context.Background()

	s, err := redisstore.Dial(ctx, url, redisstore.WithPrefix("test:"))
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.Load(ctx, "place-42")
	require.NoError(t, err)
	require.False(t, ok)

	ref, err := s.StoreOnce(ctx, "place-42", "https://a.example/photos/abc/media")
	require.NoError(t, err)
	require.Equal(t, "https://a.example/photos/abc/media", ref)

	// First write wins.
	ref, err = s.StoreOnce(ctx, "place-42", "https://b.example/photos/abc/media")
	require.NoError(t, err)
	require.Equal(t, "https://a.example/photos/abc/media", ref)

	ref, ok, err = s.Load(ctx, "place-42")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "https://a.example/photos/abc/media", ref)
}

type staticSource string

func (s staticSource) Resolve(ctx context.Context, key string) resolver.Result {
	return resolver.Result{Ref: string(s) + key}
}

func TestSharedBetweenCaches(t *testing.T) {
	url := startRedis(t)
	ctx := context.Background()

	s1, err := redisstore.Dial(ctx, url)
	require.NoError(t, err)
	defer s1.Close()
	s2, err := redisstore.Dial(ctx, url)
	require.NoError(t, err)
	defer s2.Close()

	c1, err := photocache.New(staticSource("https://one.example/"), photocache.WithSharedStore(s1))
	require.NoError(t, err)
	c2, err := photocache.New(staticSource("https://two.example/"), photocache.WithSharedStore(s2))
	require.NoError(t, err)

	res, err := c1.Resolve(ctx, "place-42")
	require.NoError(t, err)
	require.Equal(t, "https://one.example/place-42", res.Ref)

	// The second instance uses the reference published by the first.
	res, err = c2.Resolve(ctx, "place-42")
	require.NoError(t, err)
	require.True(t, res.Cached)
	require.Equal(t, "https://one.example/place-42", res.Ref)
}
