package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haowjy/nemochat-go"
	"github.com/haowjy/nemochat-go/stores/storetest"
)

func openMini(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := Open("redis://"+mr.Addr(), ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestStore(t *testing.T) {
	s, _ := openMini(t, 0)
	storetest.Run(t, s)
}

func TestStore_TTL(t *testing.T) {
	ctx := context.Background()
	s, mr := openMini(t, time.Hour)

	require.NoError(t, s.Set(ctx, nemochat.SettingsKey, []byte("{}")))
	assert.Equal(t, time.Hour, mr.TTL(nemochat.SettingsKey))

	mr.FastForward(2 * time.Hour)

	_, err := s.Get(ctx, nemochat.SettingsKey)
	assert.ErrorIs(t, err, nemochat.ErrKeyNotFound)
}

func TestStore_NoTTL(t *testing.T) {
	ctx := context.Background()
	s, mr := openMini(t, 0)

	require.NoError(t, s.Set(ctx, "k", []byte("v")))
	assert.Equal(t, time.Duration(0), mr.TTL("k"))
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	s, mr := openMini(t, 0)
	require.NoError(t, s.Set(ctx, "k", []byte("v")))

	require.NoError(t, s.Delete(ctx, "k"))
	assert.False(t, mr.Exists("k"))
}

func TestStore_ServerDown(t *testing.T) {
	ctx := context.Background()
	s, mr := openMini(t, 0)
	mr.Close()

	_, err := s.Get(ctx, "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, nemochat.ErrKeyNotFound)
}

func TestOpen_BadURL(t *testing.T) {
	_, err := Open("not a url://", 0)
	assert.Error(t, err)
}
