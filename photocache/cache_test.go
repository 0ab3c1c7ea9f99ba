package photocache_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tripsage/go-placephoto/internal/test"
	"github.com/tripsage/go-placephoto/photocache"
	"github.com/tripsage/go-placephoto/places"
	"github.com/tripsage/go-placephoto/resolver"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type mockSource struct {
	calls atomic.Int32
	fail  atomic.Bool
}

func (s *mockSource) Resolve(ctx context.Context, key string) resolver.Result {
	s.calls.Add(1)
	if key == "" {
		return resolver.Result{
			Ref:      "/fallback-1.jpg",
			Fallback: true,
			Failure:  &resolver.Failure{Kind: resolver.MissingKey},
		}
	}
	if s.fail.Load() {
		return resolver.Result{
			Ref:      "/fallback-2.jpg",
			Fallback: true,
			Failure:  &resolver.Failure{Kind: resolver.TransportFailure, Key: key},
		}
	}
	return resolver.Result{Ref: "https://img.example/" + key}
}

type memStore struct {
	mu   sync.Mutex
	refs map[string]string
	err  error
}

func newMemStore() *memStore {
	return &memStore{refs: make(map[string]string)}
}

func (s *memStore) Load(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", false, s.err
	}
	ref, ok := s.refs[key]
	return ref, ok, nil
}

func (s *memStore) StoreOnce(ctx context.Context, key, ref string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	if prev, ok := s.refs[key]; ok {
		return prev, nil
	}
	s.refs[key] = ref
	return ref, nil
}

func newResolverCache(t *testing.T, srv *test.ImageryServer, options ...photocache.Option) *photocache.Cache {
	client, err := places.New(srv.URL, places.WithAPIKey("k"))
	require.NoError(t, err)
	c, err := photocache.New(resolver.New(client, nil), options...)
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	_, err := photocache.New(nil)
	require.Error(t, err)

	_, err = photocache.New(&mockSource{}, photocache.WithResolveTimeout(-time.Second))
	require.ErrorContains(t, err, "option 0 failed")

	_, err = photocache.New(&mockSource{}, photocache.WithPrefetchConcurrency(0))
	require.Error(t, err)
}

func TestGetSetForget(t *testing.T) {
	c, err := photocache.New(&mockSource{})
	require.NoError(t, err)

	_, ok := c.Get("p1")
	require.False(t, ok)
	require.Zero(t, c.Len())

	c.Set("p1", "ref-1")
	ref, ok := c.Get("p1")
	require.True(t, ok)
	require.Equal(t, "ref-1", ref)

	// Last write wins.
	c.Set("p1", "ref-2")
	ref, _ = c.Get("p1")
	require.Equal(t, "ref-2", ref)
	require.Equal(t, 1, c.Len())

	c.Set("", "ref")
	c.Set("p2", "")
	require.Equal(t, 1, c.Len())

	require.True(t, c.Forget("p1"))
	require.False(t, c.Forget("p1"))
	_, ok = c.Get("p1")
	require.False(t, ok)
	require.Zero(t, c.Len())
	require.Empty(t, c.Refs())
}

func TestManyEntries(t *testing.T) {
	c, err := photocache.New(&mockSource{})
	require.NoError(t, err)

	keys := test.RandomPlaceKeys(200)
	for i, key := range keys {
		c.Set(key, fmt.Sprint("ref-", i))
	}
	require.Equal(t, len(keys), c.Len())

	for i := 0; i < len(keys); i += 2 {
		require.True(t, c.Forget(keys[i]))
	}
	require.Equal(t, len(keys)/2, c.Len())

	refs := c.Refs()
	require.Len(t, refs, len(keys)/2)
	for i, key := range keys {
		ref, ok := c.Get(key)
		if i%2 == 0 {
			require.False(t, ok)
			continue
		}
		require.True(t, ok)
		require.Equal(t, fmt.Sprint("ref-", i), ref)
		require.Equal(t, ref, refs[key])
	}
}

func TestResolveWarmCache(t *testing.T) {
	srv := test.NewImageryServer(t)
	srv.SetPhotos("place-42", "photos/abc")
	c := newResolverCache(t, srv)
	ctx := context.Background()

	res, err := c.Resolve(ctx, "place-42")
	require.NoError(t, err)
	require.False(t, res.Cached)
	require.Equal(t, srv.URL+"/photos/abc/media", res.Ref)

	res2, err := c.Resolve(ctx, "place-42")
	require.NoError(t, err)
	require.True(t, res2.Cached)
	require.Equal(t, res.Ref, res2.Ref)
	require.Equal(t, int32(1), srv.MetadataCalls.Load())
	require.Equal(t, int32(1), srv.MediaCalls.Load())

	stats := c.Stats()
	require.Equal(t, uint64(1), stats.Hits)
	require.Equal(t, uint64(1), stats.Misses)
	require.Equal(t, uint64(1), stats.Resolutions)
	require.Equal(t, 1, stats.Size)
}

func TestResolveFallbackNotCached(t *testing.T) {
	srv := test.NewImageryServer(t)
	srv.SetPhotos("place-99", "photos/xyz")
	srv.FailMetadata("place-99", http.StatusInternalServerError)
	c := newResolverCache(t, srv)
	ctx := context.Background()

	res, err := c.Resolve(ctx, "place-99")
	require.NoError(t, err)
	require.True(t, res.Fallback)
	require.Contains(t, []string{"/fallback-1.jpg", "/fallback-2.jpg", "/fallback-3.jpg"}, res.Ref)
	_, ok := c.Get("place-99")
	require.False(t, ok)

	// The service recovers and the next lookup resolves the photo.
	srv.FailMetadata("place-99", 0)
	res, err = c.Resolve(ctx, "place-99")
	require.NoError(t, err)
	require.False(t, res.Fallback)
	require.Equal(t, srv.URL+"/photos/xyz/media", res.Ref)
	require.Equal(t, int32(2), srv.MetadataCalls.Load())
}

func TestResolveFallbackCaching(t *testing.T) {
	src := &mockSource{}
	src.fail.Store(true)
	c, err := photocache.New(src, photocache.WithFallbackCaching(true))
	require.NoError(t, err)

	res, err := c.Resolve(context.Background(), "p1")
	require.NoError(t, err)
	require.True(t, res.Fallback)

	src.fail.Store(false)
	res2, err := c.Resolve(context.Background(), "p1")
	require.NoError(t, err)
	require.True(t, res2.Cached)
	require.True(t, res2.Fallback)
	require.Nil(t, res2.Failure)
	require.Equal(t, res.Ref, res2.Ref)
	require.Equal(t, int32(1), src.calls.Load())

	// A photo stored later replaces the fallback.
	c.Set("p1", "https://img.example/p1")
	res3, err := c.Resolve(context.Background(), "p1")
	require.NoError(t, err)
	require.False(t, res3.Fallback)
	require.Equal(t, "https://img.example/p1", res3.Ref)
}

func TestResolveEmptyKey(t *testing.T) {
	src := &mockSource{}
	c, err := photocache.New(src, photocache.WithFallbackCaching(true))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		res, err := c.Resolve(context.Background(), "")
		require.NoError(t, err)
		require.True(t, res.Fallback)
		require.False(t, res.Cached)
	}
	require.Equal(t, int32(3), src.calls.Load())
	require.Zero(t, c.Len())
	require.Zero(t, c.Stats().Misses)
}

func TestConcurrentResolveShared(t *testing.T) {
	srv := test.NewImageryServer(t)
	srv.SetPhotos("place-42", "photos/abc")
	c := newResolverCache(t, srv)

	release := srv.Hold()
	defer release()

	const n = 50
	results := make([]resolver.Result, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Resolve(context.Background(), "place-42")
		}(i)
	}

	require.Eventually(t, func() bool {
		return srv.MetadataCalls.Load() == 1
	}, 5*time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	release()
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, srv.URL+"/photos/abc/media", results[i].Ref)
	}
	require.Equal(t, int32(1), srv.MetadataCalls.Load())
	require.Equal(t, int32(1), srv.MediaCalls.Load())
	require.Equal(t, uint64(1), c.Stats().Resolutions)
}

func TestResolveCallerCanceled(t *testing.T) {
	srv := test.NewImageryServer(t)
	srv.SetPhotos("place-42", "photos/abc")
	c := newResolverCache(t, srv)

	release := srv.Hold()
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.Resolve(ctx, "place-42")
		errCh <- err
	}()

	require.Eventually(t, func() bool {
		return srv.MetadataCalls.Load() == 1
	}, 5*time.Second, time.Millisecond)
	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)

	// The shared resolution completes and is cached.
	release()
	require.Eventually(t, func() bool {
		_, ok := c.Get("place-42")
		return ok
	}, 5*time.Second, time.Millisecond)
}

func TestResolveTimeout(t *testing.T) {
	srv := test.NewImageryServer(t)
	srv.SetPhotos("place-42", "photos/abc")
	c := newResolverCache(t, srv, photocache.WithResolveTimeout(50*time.Millisecond))

	release := srv.Hold()
	defer release()

	res, err := c.Resolve(context.Background(), "place-42")
	require.NoError(t, err)
	require.True(t, res.Fallback)
	require.Equal(t, resolver.TransportFailure, res.Failure.Kind)
	require.True(t, errors.Is(res.Failure, context.DeadlineExceeded))
}

func TestResolveAllAndPrefetch(t *testing.T) {
	src := &mockSource{}
	c, err := photocache.New(src, photocache.WithPrefetchConcurrency(2))
	require.NoError(t, err)
	ctx := context.Background()

	keys := test.RandomPlaceKeys(10)
	require.NoError(t, c.Prefetch(ctx, append(keys, "", keys[0])...))
	require.Equal(t, len(keys), c.Len())
	require.Equal(t, int32(len(keys)), src.calls.Load())

	extra := test.RandomPlaceKeys(1)[0]
	refs, err := c.ResolveAll(ctx, keys[0], extra, "")
	require.NoError(t, err)
	require.Len(t, refs, 2)
	require.Equal(t, "https://img.example/"+keys[0], refs[keys[0]])
	require.Equal(t, "https://img.example/"+extra, refs[extra])
	require.Equal(t, int32(len(keys)+1), src.calls.Load())
}

func TestPrefetchCanceled(t *testing.T) {
	c, err := photocache.New(&mockSource{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = c.Prefetch(ctx, test.RandomPlaceKeys(3)...)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSharedStore(t *testing.T) {
	store := newMemStore()
	store.refs["p1"] = "https://other.example/p1"

	src := &mockSource{}
	c, err := photocache.New(src, photocache.WithSharedStore(store))
	require.NoError(t, err)
	ctx := context.Background()

	// Found in the shared store, no resolution.
	res, err := c.Resolve(ctx, "p1")
	require.NoError(t, err)
	require.True(t, res.Cached)
	require.Equal(t, "https://other.example/p1", res.Ref)
	require.Zero(t, src.calls.Load())

	// Resolved and published.
	res, err = c.Resolve(ctx, "p2")
	require.NoError(t, err)
	require.Equal(t, "https://img.example/p2", res.Ref)
	require.Equal(t, "https://img.example/p2", store.refs["p2"])

	// Fallbacks are never published.
	src.fail.Store(true)
	_, err = c.Resolve(ctx, "p3")
	require.NoError(t, err)
	_, ok := store.refs["p3"]
	require.False(t, ok)
}

func TestSharedStoreFailure(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("connection refused")
	c, err := photocache.New(&mockSource{}, photocache.WithSharedStore(store))
	require.NoError(t, err)

	res, err := c.Resolve(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, "https://img.example/p1", res.Ref)
	ref, ok := c.Get("p1")
	require.True(t, ok)
	require.Equal(t, res.Ref, ref)
}
