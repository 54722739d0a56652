// Package stores opens the persistence backend selected by configuration.
package stores

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/haowjy/nemochat-go"
	"github.com/haowjy/nemochat-go/stores/memory"
	"github.com/haowjy/nemochat-go/stores/redis"
	"github.com/haowjy/nemochat-go/stores/sqlite"
)

// Supported backends
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("stores: unknown backend")

// Backend is a KeyValueStore that can delete keys and holds resources.
type Backend interface {
	nemochat.KeyValueStore
	nemochat.KeyDeleter
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend    string
	SQLitePath string
	RedisURL   string
	RedisTTL   time.Duration
}

// Open returns the backend named by opts.Backend. An empty name selects memory.
func Open(opts Options) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendMemory:
		return memory.New(), nil
	case BackendSQLite:
		if opts.SQLitePath == "" {
			return nil, errors.New("stores: sqlite backend requires a path")
		}
		s, err := sqlite.Open(opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendRedis:
		if opts.RedisURL == "" {
			return nil, errors.New("stores: redis backend requires a URL")
		}
		s, err := redis.Open(opts.RedisURL, opts.RedisTTL)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, errors.Wrapf(ErrUnknownBackend, "%q", opts.Backend)
	}
}
