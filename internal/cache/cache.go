// Package cache holds rendered API responses between mutations.
package cache

import (
	"context"
	"time"

	"github.com/mdobak/go-xerrors"
)

var ErrCacheMiss = xerrors.Message("cache miss")

// Cache is implemented by the in-memory and Redis backends. Implementations
// must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// Options selects the backend: Redis when RedisURL is set, memory otherwise.
type Options struct {
	RedisURL   string
	Prefix     string
	DefaultTTL time.Duration
}

func New(opts Options) (Cache, error) {
	if opts.RedisURL != "" {
		return NewRedisCache(opts)
	}
	return NewMemoryCache(opts.DefaultTTL), nil
}
