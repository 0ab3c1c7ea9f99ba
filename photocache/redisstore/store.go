// Package redisstore is a photocache.Store kept in redis, for sharing
// resolved place photos between service instances.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "placephoto:"

type config struct {
	prefix string
	ttl    time.Duration
}

// Option is a function that sets a value in a config.
type Option func(*config) error

// WithPrefix sets the prefix prepended to place keys to form redis keys.
//
// Default is "placephoto:".
func WithPrefix(prefix string) Option {
	return func(cfg *config) error {
		cfg.prefix = prefix
		return nil
	}
}

// WithTTL sets how long a stored reference lives in redis. A value of 0 keeps
// references until they are removed by other means.
//
// Default is 0.
func WithTTL(ttl time.Duration) Option {
	return func(cfg *config) error {
		if ttl < 0 {
			return errors.New("negative ttl")
		}
		cfg.ttl = ttl
		return nil
	}
}

// Store stores place photo references in redis.
type Store struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// New creates a Store using an existing redis client.
func New(client redis.UniversalClient, options ...Option) (*Store, error) {
	cfg := config{
		prefix: defaultPrefix,
	}
	for i, opt := range options {
		if err := opt(&cfg); err != nil {
			return nil, fmt.Errorf("option %d failed: %s", i, err)
		}
	}
	return &Store{
		client: client,
		prefix: cfg.prefix,
		ttl:    cfg.ttl,
	}, nil
}

// Dial creates a Store connected to the redis server at url, such as
// "redis://localhost:6379/0", and checks that the server answers.
func Dial(ctx context.Context, url string, options ...Option) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err = client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("cannot reach redis: %w", err)
	}
	s, err := New(client, options...)
	if err != nil {
		client.Close()
		return nil, err
	}
	return s, nil
}

// Load returns the reference stored for key.
func (s *Store) Load(ctx context.Context, key string) (string, bool, error) {
	ref, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return ref, true, nil
}

// StoreOnce stores ref for key if nothing is stored yet, and returns the
// reference stored for key.
func (s *Store) StoreOnce(ctx context.Context, key, ref string) (string, error) {
	rkey := s.prefix + key
	ok, err := s.client.SetNX(ctx, rkey, ref, s.ttl).Result()
	if err != nil {
		return "", err
	}
	if ok {
		return ref, nil
	}
	prev, err := s.client.Get(ctx, rkey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Expired between the two commands.
			return ref, nil
		}
		return "", err
	}
	return prev, nil
}

// Close closes the underlying redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
