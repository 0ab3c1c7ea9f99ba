package main

import (
	"context"
	"fmt"

	"github.com/tripsage/go-placephoto/config"
	"github.com/tripsage/go-placephoto/fallback"
	"github.com/tripsage/go-placephoto/photocache"
	"github.com/tripsage/go-placephoto/photocache/redisstore"
	"github.com/tripsage/go-placephoto/places"
	"github.com/tripsage/go-placephoto/resolver"
)

// photoStack is the resolver, cache and optional shared store built from
// configuration.
type photoStack struct {
	pool  *fallback.Pool
	cache *photocache.Cache
	store *redisstore.Store
}

func newPhotoStack(ctx context.Context, cfg *config.Config) (*photoStack, error) {
	pool, err := cfg.FallbackPool()
	if err != nil {
		return nil, fmt.Errorf("fallback images: %w", err)
	}

	client, err := places.New(cfg.Places.BaseURL, cfg.PlacesOptions()...)
	if err != nil {
		return nil, fmt.Errorf("cannot create imagery client: %w", err)
	}
	if !client.HasCredential() {
		log.Warn("No imagery API key configured, all photos will use fallback images")
	}

	stack := &photoStack{pool: pool}
	opts := cfg.CacheOptions()
	if cfg.Cache.RedisURL != "" {
		stack.store, err = redisstore.Dial(ctx, cfg.Cache.RedisURL, redisstore.WithTTL(cfg.Cache.RedisTTL))
		if err != nil {
			return nil, err
		}
		opts = append(opts, photocache.WithSharedStore(stack.store))
		log.Infow("Using shared photo store", "ttl", cfg.Cache.RedisTTL)
	}

	stack.cache, err = photocache.New(resolver.New(client, pool), opts...)
	if err != nil {
		stack.Close()
		return nil, err
	}
	log.Infow("Photo resolver ready", "imagery", client, "fallbacks", pool.Len())
	return stack, nil
}

func (s *photoStack) Close() {
	if s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		log.Errorw("Cannot close shared photo store", "err", err)
	}
}
