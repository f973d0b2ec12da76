package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, "fetch:", ttl), mr
}

func TestStoreGetPut(t *testing.T) {
	t.Parallel()

	store, mr := setupStore(t, 0)
	ctx := context.Background()

	_, found, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Put(ctx, "abc", []byte("body")))
	got, found, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("body"), got)
	assert.True(t, mr.Exists("fetch:abc"))
}

func TestStoreTTL(t *testing.T) {
	t.Parallel()

	store, mr := setupStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "abc", []byte("body")))
	mr.FastForward(2 * time.Minute)
	_, found, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDialRequiresAddr(t *testing.T) {
	t.Parallel()

	_, err := Dial(context.Background(), Config{})
	assert.Error(t, err)
}

func TestDialPings(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	store, err := Dial(context.Background(), Config{Addr: mr.Addr(), KeyPrefix: "p:"})
	require.NoError(t, err)
	defer store.Close() //nolint:errcheck // test cleanup
	require.NoError(t, store.Put(context.Background(), "k", []byte("v")))
	assert.True(t, mr.Exists("p:k"))
}
