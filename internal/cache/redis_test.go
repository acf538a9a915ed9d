package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filevault/internal/domain"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return NewClientFromRedis(rdb), mr
}

func TestSetGetRoundTrip(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	require.NoError(t, c.SetWithExpiry(ctx, "key", payload{Name: "x", Count: 3}, time.Minute))

	var got payload
	found, err := c.Get(ctx, "key", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, payload{Name: "x", Count: 3}, got)
}

func TestGetMissingKey(t *testing.T) {
	c, _ := newTestClient(t)

	var got string
	found, err := c.Get(context.Background(), "nothing", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestKeyExpires(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.SetWithExpiry(ctx, "key", "value", time.Minute))

	mr.FastForward(2 * time.Minute)

	var got string
	found, err := c.Get(ctx, "key", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDeleteMissingKeyIsNotAnError(t *testing.T) {
	c, _ := newTestClient(t)
	assert.NoError(t, c.Delete(context.Background(), "nothing"))
}

func TestIncrementSetsTTLOnFirstWrite(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	count, err := c.Increment(ctx, "counter", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, time.Minute, mr.TTL("counter"))

	// TTL не переустанавливается на последующих инкрементах
	mr.FastForward(30 * time.Second)
	count, err = c.Increment(ctx, "counter", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, 30*time.Second, mr.TTL("counter"))
}

func TestDecrement(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, err := c.Increment(ctx, "counter", time.Minute)
	require.NoError(t, err)
	_, err = c.Increment(ctx, "counter", time.Minute)
	require.NoError(t, err)

	count, err := c.Decrement(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestGetIntMissingKeyIsZero(t *testing.T) {
	c, _ := newTestClient(t)

	n, err := c.GetInt(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestTransportErrorIsStorageUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })
	c := NewClientFromRedis(rdb)
	ctx := context.Background()

	mr.Close()

	var got string
	_, err := c.Get(ctx, "key", &got)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)

	err = c.SetWithExpiry(ctx, "key", "value", time.Minute)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)

	_, err = c.Increment(ctx, "counter", time.Minute)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}

func TestTTLAndExists(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.SetWithExpiry(ctx, "key", "value", time.Hour))

	exists, err := c.Exists(ctx, "key")
	require.NoError(t, err)
	assert.True(t, exists)

	ttl, err := c.TTL(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, time.Hour, ttl)
}
