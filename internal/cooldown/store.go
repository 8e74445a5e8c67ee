package cooldown

import (
	"context"
	"fmt"
)

// Store kinds accepted by OpenStore.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// StoreOptions selects and configures a Store.
type StoreOptions struct {
	// Kind is one of StoreMemory, StoreSQLite or StoreRedis.
	Kind string

	// Dir is the state directory for the SQLite store.
	Dir string

	// RedisAddr, RedisPassword and RedisDB configure the Redis store.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// OpenStore opens the store described by opts.
func OpenStore(ctx context.Context, opts StoreOptions) (Store, error) {
	switch opts.Kind {
	case "", StoreMemory:
		return NewMemoryStore(), nil
	case StoreSQLite:
		return OpenSQLiteStore(opts.Dir)
	case StoreRedis:
		return OpenRedisStore(ctx, opts.RedisAddr, opts.RedisPassword, opts.RedisDB, WithRedisPrefix(opts.RedisPrefix))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStore, opts.Kind)
	}
}
