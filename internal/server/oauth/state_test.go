package oauth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, ttl time.Duration) (*StateStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewStateStore(rdb, ttl), mr
}

func TestStateStore_SingleUse(t *testing.T) {
	store, mr := newStore(t, 10*time.Minute)
	ctx := context.Background()

	state, err := store.Issue(ctx)
	require.NoError(t, err)
	assert.Len(t, state, 32)
	assert.True(t, mr.Exists(stateKeyPrefix+state))
	assert.Equal(t, 10*time.Minute, mr.TTL(stateKeyPrefix+state))

	ok, err := store.Consume(ctx, state)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Consume(ctx, state)
	require.NoError(t, err)
	assert.False(t, ok, "state cannot be replayed")
}

func TestStateStore_UnknownAndEmpty(t *testing.T) {
	store, _ := newStore(t, time.Minute)

	ok, err := store.Consume(context.Background(), "never-issued")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.Consume(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStateStore_Expires(t *testing.T) {
	store, mr := newStore(t, time.Minute)
	ctx := context.Background()

	state, err := store.Issue(ctx)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	ok, err := store.Consume(ctx, state)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStateStore_RedisDown(t *testing.T) {
	store, mr := newStore(t, time.Minute)
	mr.Close()

	_, err := store.Issue(context.Background())
	assert.Error(t, err)
}
