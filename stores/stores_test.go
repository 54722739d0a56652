package stores

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haowjy/nemochat-go/stores/memory"
	"github.com/haowjy/nemochat-go/stores/redis"
	"github.com/haowjy/nemochat-go/stores/sqlite"
)

func TestOpen(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name string
		opts Options
		want any
	}{
		{"default", Options{}, &memory.Store{}},
		{"memory", Options{Backend: "Memory"}, &memory.Store{}},
		{"sqlite", Options{Backend: BackendSQLite, SQLitePath: filepath.Join(t.TempDir(), "c.db")}, &sqlite.Store{}},
		{"redis", Options{Backend: BackendRedis, RedisURL: "redis://" + mr.Addr(), RedisTTL: time.Minute}, &redis.Store{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Open(tt.opts)
			require.NoError(t, err)
			defer b.Close()
			assert.IsType(t, tt.want, b)
		})
	}
}

func TestOpen_Errors(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"unknown backend", Options{Backend: "etcd"}},
		{"sqlite without path", Options{Backend: BackendSQLite}},
		{"redis without url", Options{Backend: BackendRedis}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Open(tt.opts)
			assert.Error(t, err)
			assert.Nil(t, b)
		})
	}

	_, err := Open(Options{Backend: "etcd"})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}
