// Package cache stores authoritative VIN decode responses so repeated lookups
// do not hit the remote registry.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vindiesel/vin-engine/internal/config"
)

// ErrCacheMiss indicates a cache miss.
var ErrCacheMiss = errors.New("cache miss")

// Client defines the cache interface.
type Client interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	Ping(ctx context.Context) error
	Close() error
}

// New builds the Client selected by cfg.Driver.
func New(cfg config.CacheConfig) (Client, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryClient(cfg.MaxEntries), nil
	case "redis":
		return NewRedisClient(RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
			Prefix:   cfg.Redis.Prefix,
		})
	case "sqlite":
		return OpenSQLite(cfg.SQLite)
	case "postgres":
		return OpenPostgres(cfg.Postgres)
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}

// Key joins key components with ':'.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// DecodeKey is the cache key for a remote decode of vin.
func DecodeKey(vin string) string {
	return Key("decode", strings.ToUpper(vin))
}
