package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

// exerciseCache runs the behaviour every Cache must share
func exerciseCache(t *testing.T, c Cache) {
	t.Helper()
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, AnalyticsKey(30), []byte("a"), time.Minute))
	require.NoError(t, c.Set(ctx, AnalyticsKey(7), []byte("b"), time.Minute))
	require.NoError(t, c.Set(ctx, KeyPrefixInboxStats, []byte("c"), time.Minute))

	got, err := c.Get(ctx, AnalyticsKey(30))
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), got)

	require.NoError(t, c.DeleteByPattern(ctx, KeyPrefixAnalytics+":*"))
	_, err = c.Get(ctx, AnalyticsKey(7))
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, AnalyticsKey(30))
	assert.ErrorIs(t, err, ErrCacheMiss)

	_, err = c.Get(ctx, KeyPrefixInboxStats)
	assert.NoError(t, err)

	require.NoError(t, c.Delete(ctx, KeyPrefixInboxStats))
	_, err = c.Get(ctx, KeyPrefixInboxStats)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := NewMemoryCache()
	exerciseCache(t, c)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestMemoryCacheExpiry(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	now := time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)

	c := NewMemoryCache()
	defer c.Close()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "short", []byte("v"), time.Second))
	require.NoError(t, c.Set(ctx, "long", []byte("v"), time.Minute))

	now = now.Add(time.Second)
	_, err := c.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrCacheMiss)

	assert.Equal(t, 0, c.Sweep())
	now = now.Add(time.Minute)
	assert.Equal(t, 1, c.Sweep())

	_, err = c.Get(ctx, "long")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCacheUsableAfterClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	c := NewMemoryCache()
	require.NoError(t, c.Close())

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestMemoryCacheRejectsBadPattern(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()

	assert.Error(t, c.DeleteByPattern(context.Background(), "cache:["))
}

func TestNoOpCache(t *testing.T) {
	ctx := context.Background()
	c := NewNoOpCache()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.NoError(t, c.DeleteByPattern(ctx, "*"))
	assert.NoError(t, c.Close())
}

func newRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	c := NewRedisCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = c.Close() })

	return c, mr
}

func TestRedisCache(t *testing.T) {
	c, _ := newRedisCache(t)
	exerciseCache(t, c)
}

func TestRedisCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t)

	require.NoError(t, c.Set(ctx, KeyPrefixApplicationStats, []byte("v"), TTLStats))
	assert.Equal(t, TTLStats, mr.TTL(KeyPrefixApplicationStats))

	mr.FastForward(TTLStats)
	_, err := c.Get(ctx, KeyPrefixApplicationStats)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCacheDeleteByPatternBatches(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t)

	for days := 1; days <= 2*deleteBatch+5; days++ {
		require.NoError(t, c.Set(ctx, AnalyticsKey(days), []byte("x"), time.Minute))
	}
	require.NoError(t, c.Set(ctx, KeyPrefixInboxStats, []byte("y"), time.Minute))

	require.NoError(t, c.DeleteByPattern(ctx, KeyPrefixAnalytics+":*"))
	assert.Equal(t, []string{KeyPrefixInboxStats}, mr.Keys())
}

func TestRedisCacheGetError(t *testing.T) {
	c, mr := newRedisCache(t)
	mr.Close()

	_, err := c.Get(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestInvalidator(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t)
	inv := NewInvalidator(c, zap.NewNop())

	require.NoError(t, c.Set(ctx, AnalyticsKey(30), []byte("a"), time.Minute))
	require.NoError(t, c.Set(ctx, KeyPrefixInboxStats, []byte("b"), time.Minute))
	require.NoError(t, c.Set(ctx, KeyPrefixApplicationStats, []byte("c"), time.Minute))

	inv.InvalidateAnalytics(ctx)
	assert.False(t, mr.Exists(AnalyticsKey(30)))

	inv.InvalidateInbox(ctx)
	assert.False(t, mr.Exists(KeyPrefixInboxStats))

	inv.InvalidateApplications(ctx)
	assert.Empty(t, mr.Keys())

	var nilInv *Invalidator
	nilInv.InvalidateAnalytics(ctx)
	NewInvalidator(nil, zap.NewNop()).InvalidateInbox(ctx)
}
