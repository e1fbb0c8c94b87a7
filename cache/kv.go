// Package cache persists parsed feeds: a memory index in front of a single
// durable snapshot kept in a key-value backend.
package cache

import (
	"fmt"

	"github.com/scipunch/rssreader/config"
)

// KV is a durable key-value text store
type KV interface {
	// Get returns (value, found, error)
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// Deleter is implemented by backends that can drop a key
type Deleter interface {
	Delete(key string) error
}

// Backend is a KV holding resources that must be released
type Backend interface {
	KV
	Deleter
	Close() error
}

// Open creates the backend selected by the storage config
func Open(conf config.StorageConfig, creds config.Credentials) (Backend, error) {
	switch conf.Driver {
	case config.SQLite, "":
		dbPath := conf.DatabasePath
		if dbPath == "" {
			dbPath = DefaultCachePath()
		}
		kv, err := NewSQLiteKV(dbPath)
		if err != nil {
			return nil, err
		}
		return kv, nil
	case config.Redis:
		kv, err := NewRedisKV(RedisOptions{
			Addr:     conf.RedisAddr,
			DB:       conf.RedisDB,
			Username: creds.Redis.Username,
			Password: creds.Redis.Password,
		})
		if err != nil {
			return nil, err
		}
		return kv, nil
	case config.Memory:
		return NewMemoryKV(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", conf.Driver)
	}
}
