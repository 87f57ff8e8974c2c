package ledger

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedger(t *testing.T, ttl time.Duration) (*RedisLedger, *miniredis.Miniredis) {
	t.Helper()
	m, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() {
		if cerr := client.Close(); cerr != nil {
			t.Logf("redis close: %v", cerr)
		}
	})
	return NewRedisLedger(client, ttl), m
}

func TestRedisLedger_MarkAndLookup(t *testing.T) {
	l, m := newLedger(t, time.Hour)
	ctx := context.Background()

	delivered, err := l.Delivered(ctx, "msg-1")
	require.NoError(t, err)
	assert.False(t, delivered)

	require.NoError(t, l.MarkDelivered(ctx, "msg-1"))

	delivered, err = l.Delivered(ctx, "msg-1")
	require.NoError(t, err)
	assert.True(t, delivered)
	assert.True(t, m.Exists(keyPrefix+"msg-1"))
	assert.Equal(t, time.Hour, m.TTL(keyPrefix+"msg-1"))

	other, err := l.Delivered(ctx, "msg-2")
	require.NoError(t, err)
	assert.False(t, other)
}

func TestRedisLedger_Expires(t *testing.T) {
	l, m := newLedger(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, l.MarkDelivered(ctx, "msg-1"))
	m.FastForward(2 * time.Minute)

	delivered, err := l.Delivered(ctx, "msg-1")
	require.NoError(t, err)
	assert.False(t, delivered)
}

func TestRedisLedger_ConnectionError(t *testing.T) {
	l, m := newLedger(t, time.Minute)
	m.Close()

	_, err := l.Delivered(context.Background(), "msg-1")
	assert.Error(t, err)
	assert.Error(t, l.MarkDelivered(context.Background(), "msg-1"))
	assert.Error(t, l.Ping(context.Background()))
}
