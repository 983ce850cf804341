package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2, time.Hour)
	now := time.Now()

	s := &Session{ID: "a", AccountID: 1, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, store.Save(ctx, s))

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.AccountID)

	got.AccountID = 99
	again, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.AccountID, "store returns copies")

	require.NoError(t, store.Delete(ctx, "a"))
	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Bounded(t *testing.T) {
	store := NewMemoryStore(2, time.Hour)
	exp := time.Now().Add(time.Hour)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Save(context.Background(), &Session{ID: id, ExpiresAt: exp}))
	}
	assert.Equal(t, 2, store.Len())
	_, err := store.Get(context.Background(), "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, ""), mr
}

func TestRedisStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)

	s := &Session{ID: "abc", AccountID: 5, CSRFInitialized: true, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.Save(ctx, s))

	assert.True(t, mr.Exists(DefaultRedisPrefix+"abc"))
	ttl := mr.TTL(DefaultRedisPrefix + "abc")
	assert.True(t, ttl > 59*time.Minute && ttl <= time.Hour, "ttl %s", ttl)

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.AccountID)
	assert.True(t, got.CSRFInitialized)

	require.NoError(t, store.Delete(ctx, "abc"))
	_, err = store.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)

	require.NoError(t, store.Save(ctx, &Session{ID: "ttl", ExpiresAt: time.Now().Add(time.Minute)}))
	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "ttl")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_SaveExpiredDeletes(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)

	require.NoError(t, store.Save(ctx, &Session{ID: "x", ExpiresAt: time.Now().Add(time.Minute)}))
	require.NoError(t, store.Save(ctx, &Session{ID: "x", ExpiresAt: time.Now().Add(-time.Minute)}))
	assert.False(t, mr.Exists(DefaultRedisPrefix+"x"))
}

func TestRedisStore_Unavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	_, err = NewRedisStore(client, "").Get(context.Background(), "any")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
