package storage

import (
	"fmt"
	"path/filepath"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendRedis  = "redis"
)

// Options selects and configures a backend.
type Options struct {
	Backend string
	Path    string // badger directory
	Redis   RedisOptions
}

// Open creates the configured backend.
func Open(opts Options) (DB, error) {
	switch opts.Backend {
	case BackendMemory:
		return NewMemory(), nil
	case BackendBadger, "":
		if opts.Path == "" {
			return nil, fmt.Errorf("badger backend needs a path")
		}
		return NewBadger(filepath.Clean(opts.Path))
	case BackendRedis:
		if opts.Redis.Addr == "" {
			return nil, fmt.Errorf("redis backend needs an address")
		}
		return NewRedis(opts.Redis)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}
