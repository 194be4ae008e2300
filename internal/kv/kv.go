// Package kv provides the durable key-value storage that diagrams and
// preferences are persisted in. Values are opaque strings.
package kv

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ziadkadry99/diagramstudio/internal/config"
	"github.com/ziadkadry99/diagramstudio/internal/db"
)

// Storage is a string-keyed, string-valued durable store.
type Storage interface {
	// GetItem returns the stored value and whether the key exists.
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	// RemoveItem deletes the key. Removing a missing key is not an error.
	RemoveItem(ctx context.Context, key string) error
}

// Open returns the backend selected by cfg. The sqlite backend stores into
// database, which must be non-nil for that backend. The returned close
// function releases backend resources other than database.
func Open(ctx context.Context, cfg config.StorageConfig, database *db.DB) (Storage, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case config.StorageSQLite, "":
		if database == nil {
			return nil, nil, fmt.Errorf("sqlite storage requires a database")
		}
		return NewSQLite(database), noop, nil
	case config.StorageRedis:
		client := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
		}
		return NewRedis(client, cfg.RedisPrefix), client.Close, nil
	case config.StorageMemory:
		return NewMemory(), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
