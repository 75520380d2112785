package sequence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCounter(t *testing.T) (*RedisDayCounter, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisDayCounter(client), srv
}

func TestNext_IncrementsPerCall(t *testing.T) {
	counter, _ := newTestCounter(t)
	ctx := context.Background()
	date := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

	first, err := counter.Next(ctx, date)
	require.NoError(t, err)
	second, err := counter.Next(ctx, date)
	require.NoError(t, err)

	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)
}

func TestNext_SeparateCountersPerDay(t *testing.T) {
	counter, _ := newTestCounter(t)
	ctx := context.Background()

	today := time.Date(2026, 8, 29, 23, 0, 0, 0, time.UTC)
	tomorrow := today.AddDate(0, 0, 1)

	_, err := counter.Next(ctx, today)
	require.NoError(t, err)
	seq, err := counter.Next(ctx, tomorrow)
	require.NoError(t, err)

	assert.Equal(t, int64(1), seq, "a new day starts its own sequence")
}

func TestNext_SetsExpiry(t *testing.T) {
	counter, srv := newTestCounter(t)
	ctx := context.Background()
	date := time.Now().UTC()

	_, err := counter.Next(ctx, date)
	require.NoError(t, err)

	key := keyPrefix + date.Format("20060102")
	require.True(t, srv.Exists(key))
	assert.Greater(t, srv.TTL(key), time.Duration(0), "counter key must self-expire")
}
