// Package photocache provides a memoizing place photo cache for
// high-frequency concurrent reads.
//
// Cache maps place keys to resolved image references. Lookups read an
// immutable view of the cached data through an atomic pointer, so any number
// of displays can read without lock contention. Writes are serialized and
// publish a new view.
//
// ## Resolution
//
// A lookup that misses the cache resolves the place through the cache's
// Source. Concurrent lookups for the same place share one resolution, so a
// trip page that shows the same place many times issues one set of requests to
// the imagery service. The shared resolution runs detached from the callers'
// cancellation and is bounded by its own timeout, so that the result is still
// cached when every caller has given up waiting.
//
// ## Fallbacks
//
// A place that cannot be resolved yields a fallback image. By default
// fallbacks are returned but not cached, and the next lookup for the place
// tries the imagery service again. See WithFallbackCaching.
//
// ## Eviction
//
// Entries remain for the life of the cache. Forget removes a single entry, and
// is used when a resolved image turns out not to load.
//
// ## Shared Store
//
// Multiple processes can share resolved references through a Store, such as
// the redis-backed store in package redisstore. A reference is written to the
// store at most once per place, and the first reference written wins.
package photocache
