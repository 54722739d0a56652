// Package redis persists conversations in Redis. An optional TTL gives
// saved conversations the lifetime of a browser session.
package redis

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/haowjy/nemochat-go"
)

// Client is the subset of the go-redis client used by Store.
type Client interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
	Close() error
}

// Store implements KeyValueStore on Redis.
type Store struct {
	client Client
	ttl    time.Duration
}

var _ nemochat.KeyValueStore = (*Store)(nil)

// Open connects to the server at url (redis://[user:pass@]host:port/db).
// A zero ttl keeps keys forever.
func Open(url string, ttl time.Duration) (*Store, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse redis URL")
	}
	return New(goredis.NewClient(opts), ttl), nil
}

// New wraps an existing client.
func New(client Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, errors.Wrapf(nemochat.ErrKeyNotFound, "key %q", key)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get key %q", key)
	}
	return value, nil
}

// Set stores value under key, refreshing the TTL.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value, s.ttl).Err(); err != nil {
		return errors.Wrapf(err, "failed to set key %q", key)
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return errors.Wrapf(err, "failed to delete key %q", key)
	}
	return nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}
