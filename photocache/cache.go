package photocache

import (
	"context"
	"errors"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/tripsage/go-placephoto/resolver"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

var log = logging.Logger("photocache")

// Source resolves a place key to an image reference. A Source never fails; a
// place that cannot be resolved yields a fallback result.
type Source interface {
	Resolve(ctx context.Context, key string) resolver.Result
}

// Store is a place key to image reference store shared between processes.
type Store interface {
	// Load returns the reference stored for key, if any.
	Load(ctx context.Context, key string) (string, bool, error)
	// StoreOnce stores ref for key unless a reference is already stored, and
	// returns the reference that is stored for key afterwards.
	StoreOnce(ctx context.Context, key, ref string) (string, error)
}

// Stats are counters describing cache activity.
type Stats struct {
	// Hits is the number of lookups answered from the cache.
	Hits uint64
	// Misses is the number of lookups that needed a resolution.
	Misses uint64
	// Resolutions is the number of resolutions requested from the Source.
	Resolutions uint64
	// Shared is the number of lookups that received a result also delivered
	// to other concurrent lookups.
	Shared uint64
	// Size is the number of cached entries.
	Size int
}

// Cache is a lock-free place photo cache for high-performance concurrent
// reads.
type Cache struct {
	read atomic.Pointer[readOnly]
	src  Source

	cacheFallbacks      bool
	prefetchConcurrency int
	resolveTimeout      time.Duration
	store               Store

	write     map[string]entry
	writeLock chan struct{}

	flight singleflight.Group

	hits        atomic.Uint64
	misses      atomic.Uint64
	resolutions atomic.Uint64
	shared      atomic.Uint64
}

// readOnly is an immutable struct stored atomically in the cache read field.
// The m map is the main cache data and the u map contains updates that have
// not yet been moved into the main map. An entry with an empty reference in u
// means the key was removed. The reason for the u map is so that a small
// number of updates do not cause the entire main map to be regenerated.
type readOnly struct {
	m map[string]entry
	u map[string]entry
}

// entry is a cached reference and whether it is a fallback image.
type entry struct {
	ref      string
	fallback bool
}

// New creates a new photo cache that resolves missing places using src.
func New(src Source, options ...Option) (*Cache, error) {
	opts, err := getOpts(options)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, errors.New("no photo source")
	}

	return &Cache{
		src:                 src,
		cacheFallbacks:      opts.cacheFallbacks,
		prefetchConcurrency: opts.prefetchConcurrency,
		resolveTimeout:      opts.resolveTimeout,
		store:               opts.store,

		write:     make(map[string]entry),
		writeLock: make(chan struct{}, 1),
	}, nil
}

// Get returns the cached reference for key. It never resolves.
func (c *Cache) Get(key string) (string, bool) {
	e, ok := c.lookup(key)
	return e.ref, ok
}

// Set stores ref for key as a resolved photo, replacing any cached reference.
// Empty keys and references are ignored.
func (c *Cache) Set(key, ref string) {
	c.put(key, entry{ref: ref})
}

func (c *Cache) lookup(key string) (entry, bool) {
	read := c.loadReadOnly()
	e, ok := read.u[key]
	if !ok {
		e, ok = read.m[key]
	}
	return e, ok && e.ref != ""
}

func (c *Cache) put(key string, e entry) {
	if key == "" || e.ref == "" {
		return
	}
	c.writeLock <- struct{}{}
	defer func() {
		<-c.writeLock
	}()

	c.write[key] = e
	c.update(key, e)
}

// Forget removes the cached reference for key, so that the next lookup
// resolves it again. Returns true if there was a reference to remove.
func (c *Cache) Forget(key string) bool {
	c.writeLock <- struct{}{}
	defer func() {
		<-c.writeLock
	}()

	if _, ok := c.write[key]; !ok {
		return false
	}
	delete(c.write, key)
	c.update(key, entry{})
	log.Debugw("Forgot cached photo", "place", key)
	return true
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	read := c.loadReadOnly()
	n := len(read.m)
	for key, e := range read.u {
		_, inMain := read.m[key]
		if e.ref == "" {
			if inMain {
				n--
			}
		} else if !inMain {
			n++
		}
	}
	return n
}

// Refs returns a copy of all cached entries.
func (c *Cache) Refs() map[string]string {
	read := c.loadReadOnly()
	refs := make(map[string]string, len(read.m)+len(read.u))
	for key, e := range read.m {
		refs[key] = e.ref
	}
	for key, e := range read.u {
		if e.ref == "" {
			delete(refs, key)
		} else {
			refs[key] = e.ref
		}
	}
	return refs
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Resolutions: c.resolutions.Load(),
		Shared:      c.shared.Load(),
		Size:        c.Len(),
	}
}

// Resolve returns the image reference for key, from the cache if present or
// else by resolving it. Concurrent calls for the same uncached key share a
// single resolution.
//
// An empty key is never cached and always yields a fallback. An error is
// returned only if ctx is done before the result is available, in which case
// the shared resolution carries on and caches its result.
func (c *Cache) Resolve(ctx context.Context, key string) (resolver.Result, error) {
	if key == "" {
		return c.src.Resolve(ctx, key), nil
	}
	if e, ok := c.lookup(key); ok {
		c.hits.Add(1)
		return e.result(), nil
	}
	if err := ctx.Err(); err != nil {
		return resolver.Result{}, err
	}
	c.misses.Add(1)

	detached := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(key, func() (interface{}, error) {
		return c.resolveMissing(detached, key), nil
	})

	select {
	case r := <-ch:
		if r.Shared {
			c.shared.Add(1)
		}
		return r.Val.(resolver.Result), nil
	case <-ctx.Done():
		return resolver.Result{}, ctx.Err()
	}
}

// ResolveAll resolves keys concurrently, with at most the configured prefetch
// concurrency resolutions running at once, and returns the reference of each
// distinct non-empty key. References are missing for keys not resolved before
// ctx was done.
func (c *Cache) ResolveAll(ctx context.Context, keys ...string) (map[string]string, error) {
	refs := make(map[string]string, len(keys))
	var mu sync.Mutex
	err := c.each(ctx, keys, func(key string, res resolver.Result) {
		mu.Lock()
		refs[key] = res.Ref
		mu.Unlock()
	})
	return refs, err
}

// Prefetch resolves the uncached keys in the background of a page load so
// that later lookups are answered from the cache. It returns when all
// resolutions are done or ctx is done.
func (c *Cache) Prefetch(ctx context.Context, keys ...string) error {
	return c.each(ctx, keys, nil)
}

func (c *Cache) each(ctx context.Context, keys []string, found func(string, resolver.Result)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.prefetchConcurrency)

	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		if e, ok := c.lookup(key); ok {
			if found != nil {
				found(key, e.result())
			}
			continue
		}
		g.Go(func() error {
			res, err := c.Resolve(gctx, key)
			if err != nil {
				return err
			}
			if found != nil {
				found(key, res)
			}
			return nil
		})
	}
	return g.Wait()
}

// resolveMissing resolves key and writes the result back to the cache
// according to the fallback caching policy.
func (c *Cache) resolveMissing(ctx context.Context, key string) resolver.Result {
	// Stored by a resolution that completed after this lookup missed.
	if e, ok := c.lookup(key); ok {
		return e.result()
	}

	if c.resolveTimeout != 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.resolveTimeout)
		defer cancel()
	}

	if c.store != nil {
		ref, ok, err := c.store.Load(ctx, key)
		if err != nil {
			log.Warnw("Cannot read shared photo store", "place", key, "err", err)
		} else if ok {
			c.Set(key, ref)
			return resolver.Result{Ref: ref, Cached: true}
		}
	}

	c.resolutions.Add(1)
	res := c.src.Resolve(ctx, key)
	if res.Fallback {
		if c.cacheFallbacks {
			c.put(key, entry{ref: res.Ref, fallback: true})
		}
		return res
	}

	if c.store != nil {
		ref, err := c.store.StoreOnce(ctx, key, res.Ref)
		if err != nil {
			log.Warnw("Cannot write shared photo store", "place", key, "err", err)
		} else if ref != "" && ref != res.Ref {
			// Another process resolved the place first.
			res.Ref = ref
		}
	}
	c.Set(key, res.Ref)
	return res
}

// update publishes a new read view with key set to e. Must be called with the
// write lock held.
func (c *Cache) update(key string, e entry) {
	read := c.loadReadOnly()

	// Shallow-copy update map.
	updates := make(map[string]entry, len(read.u)+1)
	maps.Copy(updates, read.u)
	updates[key] = e

	// If the update map is small relative to the main map, do not generate a
	// new main map yet.
	if !needMerge(len(updates), len(read.m)) {
		c.read.Store(&readOnly{m: read.m, u: updates})
		return
	}

	// Generate main map. The write map holds exactly the live entries.
	m := make(map[string]entry, len(c.write))
	maps.Copy(m, c.write)

	// Replace old readOnly map with new.
	c.read.Store(&readOnly{m: m})
}

// result is the Result of a cache hit. A cached fallback carries no Failure
// since the failure that produced it is not kept.
func (e entry) result() resolver.Result {
	return resolver.Result{Ref: e.ref, Fallback: e.fallback, Cached: true}
}

func (c *Cache) loadReadOnly() readOnly {
	if p := c.read.Load(); p != nil {
		return *p
	}
	return readOnly{}
}

// needMerge returns true if update set u should be merged into main set m, to
// maintain the lowest overall cost of applying cache updates. The optimal time
// to merge is when the sum(1..len(u)) > len(m). This is when the cumulative
// cost of iterating u exceeds the cost of iterating m.
func needMerge(u, m int) bool {
	return u*(u+1) > m*2
}
