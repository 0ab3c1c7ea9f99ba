// Package resolver turns a place key into a displayable image reference. The
// remote imagery service is asked for the place's first photo, and the photo's
// media URL is verified before it is returned. Every failure along the way
// produces a reference from the fallback pool instead of an error.
package resolver

import (
	"context"

	logging "github.com/ipfs/go-log/v2"
	"github.com/tripsage/go-placephoto/fallback"
	"github.com/tripsage/go-placephoto/places"
)

var log = logging.Logger("resolver")

// Resolver resolves place keys against the imagery service.
type Resolver struct {
	client *places.Client
	pool   *fallback.Pool
}

// New creates a Resolver. A nil pool selects fallback.Default. A nil client
// behaves as a client with no credential.
func New(client *places.Client, pool *fallback.Pool) *Resolver {
	if pool == nil {
		pool = fallback.Default
	}
	return &Resolver{
		client: client,
		pool:   pool,
	}
}

// Pool returns the fallback pool used by the resolver.
func (r *Resolver) Pool() *fallback.Pool {
	return r.pool
}

// Resolve returns the media URL of the first photo of the place identified by
// key, or a random fallback reference if it cannot be obtained.
func (r *Resolver) Resolve(ctx context.Context, key string) Result {
	if key == "" {
		return r.fallback(&Failure{Kind: MissingKey})
	}
	if !places.ValidPlaceID(key) {
		log.Warnw("Rejected malformed place key", "place", key)
		return r.fallback(&Failure{Kind: MissingKey, Key: key, Err: places.ErrInvalidPlaceID})
	}
	if r.client == nil || !r.client.HasCredential() {
		log.Warnw("No imagery credential configured, using fallback image", "place", key)
		return r.fallback(&Failure{Kind: MissingCredential, Key: key})
	}

	photos, err := r.client.Photos(ctx, key)
	if err != nil {
		log.Warnw("Cannot fetch place photos", "place", key, "err", err)
		return r.fallback(&Failure{Kind: TransportFailure, Key: key, Err: err})
	}
	if len(photos) == 0 || photos[0].Name == "" {
		log.Infow("Place has no photos", "place", key)
		return r.fallback(&Failure{Kind: EmptyResult, Key: key})
	}

	mediaURL := r.client.MediaURL(photos[0].Name)
	if err = r.client.Verify(ctx, mediaURL); err != nil {
		log.Warnw("Cannot verify photo media", "place", key, "photo", photos[0].Name, "err", err)
		return r.fallback(&Failure{Kind: TransportFailure, Key: key, Err: err})
	}

	log.Debugw("Resolved place photo", "place", key, "url", mediaURL)
	return Result{Ref: mediaURL}
}

func (r *Resolver) fallback(f *Failure) Result {
	return Result{
		Ref:      r.pool.Random(),
		Fallback: true,
		Failure:  f,
	}
}
