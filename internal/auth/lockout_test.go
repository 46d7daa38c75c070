package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRedisAttemptStore(t *testing.T, clock *fakeClock) (*RedisAttemptStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisAttemptStore(client)
	store.now = clock.Now

	return store, mr
}

func newMemoryAttemptStore(clock *fakeClock) *MemoryAttemptStore {
	store := NewMemoryAttemptStore()
	store.now = clock.Now
	return store
}

// failAt records one failure per offset from the clock's start and returns
// the lock result of each
func failAt(t *testing.T, store AttemptStore, clock *fakeClock, offsets ...time.Duration) []bool {
	t.Helper()

	start := clock.t
	locked := make([]bool, 0, len(offsets))
	for _, off := range offsets {
		clock.t = start.Add(off)
		ok, err := store.Fail(context.Background(), "10.0.0.1", DefaultMaxFailures, DefaultWindow, DefaultLockFor)
		require.NoError(t, err)
		locked = append(locked, ok)
	}
	return locked
}

func TestAttemptStoresSlideWindow(t *testing.T) {
	tests := []struct {
		name    string
		offsets []time.Duration
		want    []bool
	}{
		{
			name:    "three quick failures",
			offsets: []time.Duration{0, time.Second, 2 * time.Second},
			want:    []bool{false, false, true},
		},
		{
			name:    "window slides past the first failure",
			offsets: []time.Duration{0, 29 * time.Second, 31 * time.Second, 32 * time.Second},
			want:    []bool{false, false, false, true},
		},
		{
			name:    "failure exactly one window old has expired",
			offsets: []time.Duration{0, 15 * time.Second, 30 * time.Second},
			want:    []bool{false, false, false},
		},
		{
			name:    "spread out failures never lock",
			offsets: []time.Duration{0, 31 * time.Second, 62 * time.Second, 93 * time.Second},
			want:    []bool{false, false, false, false},
		},
	}

	for _, tt := range tests {
		t.Run("memory/"+tt.name, func(t *testing.T) {
			clock := &fakeClock{t: time.Unix(1_780_000_000, 0)}
			assert.Equal(t, tt.want, failAt(t, newMemoryAttemptStore(clock), clock, tt.offsets...))
		})

		t.Run("redis/"+tt.name, func(t *testing.T) {
			clock := &fakeClock{t: time.Unix(1_780_000_000, 0)}
			store, _ := newRedisAttemptStore(t, clock)
			assert.Equal(t, tt.want, failAt(t, store, clock, tt.offsets...))
		})
	}
}

func TestRedisAttemptStoreLock(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1_780_000_000, 0)}
	store, mr := newRedisAttemptStore(t, clock)

	locked := failAt(t, store, clock, 0, 29*time.Second, 31*time.Second, 32*time.Second)
	require.True(t, locked[3])

	remaining, err := store.LockedFor(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, DefaultLockFor, remaining)
	assert.False(t, mr.Exists(store.failKey("10.0.0.1")))

	other, err := store.LockedFor(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.Zero(t, other)

	mr.FastForward(DefaultLockFor)
	remaining, err = store.LockedFor(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestRedisAttemptStoreReset(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1_780_000_000, 0)}
	store, mr := newRedisAttemptStore(t, clock)

	failAt(t, store, clock, 0, time.Second)
	require.NoError(t, store.Reset(ctx, "10.0.0.1"))
	assert.Empty(t, mr.Keys())

	locked := failAt(t, store, clock, 2*time.Second)
	assert.Equal(t, []bool{false}, locked)
}

func TestRedisAttemptStoreExpiresIdleFailures(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_780_000_000, 0)}
	store, mr := newRedisAttemptStore(t, clock)

	failAt(t, store, clock, 0)
	assert.Equal(t, DefaultWindow, mr.TTL(store.failKey("10.0.0.1")))

	mr.FastForward(DefaultWindow)
	assert.Empty(t, mr.Keys())
}

func TestLoginLockoutWithRedis(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Now()}
	store, _ := newRedisAttemptStore(t, clock)

	tokens, err := NewTokenIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	tokens.now = clock.Now

	a, err := NewAuthenticator(Config{
		AdminEmail: "admin@seismolink.io",
		Password:   "correct horse",
	}, tokens, store, zap.NewNop())
	require.NoError(t, err)

	for i := 0; i < DefaultMaxFailures; i++ {
		_, err := a.Login(ctx, "10.0.0.1", "admin@seismolink.io", "wrong")
		require.Error(t, err)
	}

	_, err = a.Login(ctx, "10.0.0.1", "admin@seismolink.io", "correct horse")
	var locked *LockedError
	require.ErrorAs(t, err, &locked)
}
