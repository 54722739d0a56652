// Package memory provides an in-process KeyValueStore, used for tests and
// for conversations that need not outlive the process.
package memory

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/haowjy/nemochat-go"
)

// Store is an in-memory key-value store.
type Store struct {
	data map[string][]byte
	mu   sync.RWMutex
}

// Ensure Store implements the KeyValueStore interface.
var _ nemochat.KeyValueStore = (*Store)(nil)

// New initializes an empty store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Set stores a copy of value under key.
func (m *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

// Get returns a copy of the value stored under key.
func (m *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, exists := m.data[key]
	if !exists {
		return nil, errors.Wrapf(nemochat.ErrKeyNotFound, "key %q", key)
	}
	return append([]byte(nil), value...), nil
}

// Delete removes key. Deleting a missing key is not an error.
func (m *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Close is a no-op.
func (m *Store) Close() error {
	return nil
}
