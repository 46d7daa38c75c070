package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// AttemptStore tracks failed logins per client key
type AttemptStore interface {
	// LockedFor returns how long key stays locked, zero if it is not
	LockedFor(ctx context.Context, key string) (time.Duration, error)

	// Fail records a failure and locks key for lockFor once max failures
	// fall inside window. It reports whether key is now locked.
	Fail(ctx context.Context, key string, max int, window, lockFor time.Duration) (bool, error)

	// Reset forgets all failures for key
	Reset(ctx context.Context, key string) error
}

// MemoryAttemptStore keeps attempts in process memory
type MemoryAttemptStore struct {
	mu      sync.Mutex
	entries map[string]*attemptEntry
	now     func() time.Time
}

type attemptEntry struct {
	failures    []time.Time
	lockedUntil time.Time
}

// NewMemoryAttemptStore creates an empty store
func NewMemoryAttemptStore() *MemoryAttemptStore {
	return &MemoryAttemptStore{
		entries: make(map[string]*attemptEntry),
		now:     time.Now,
	}
}

func (s *MemoryAttemptStore) LockedFor(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return 0, nil
	}

	remaining := e.lockedUntil.Sub(s.now())
	if remaining <= 0 {
		return 0, nil
	}
	return remaining, nil
}

func (s *MemoryAttemptStore) Fail(_ context.Context, key string, max int, window, lockFor time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[key]
	if !ok {
		e = &attemptEntry{}
		s.entries[key] = e
	}

	// Drop failures that slid out of the window
	cutoff := now.Add(-window)
	kept := e.failures[:0]
	for _, at := range e.failures {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	e.failures = append(kept, now)

	if len(e.failures) >= max {
		e.failures = nil
		e.lockedUntil = now.Add(lockFor)
		return true, nil
	}

	return false, nil
}

func (s *MemoryAttemptStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// Sweep drops entries that are neither locked nor holding recent failures
func (s *MemoryAttemptStore) Sweep(window time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.entries {
		recent := len(e.failures) > 0 && e.failures[len(e.failures)-1].After(now.Add(-window))
		if !recent && !e.lockedUntil.After(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// RedisAttemptStore shares attempt counters between API instances. Each
// key's failures live in a sorted set scored by unix milliseconds, so the
// window slides exactly like MemoryAttemptStore's: a failure counts while it
// is younger than window.
type RedisAttemptStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisAttemptStore creates a store using client
func NewRedisAttemptStore(client *redis.Client) *RedisAttemptStore {
	return &RedisAttemptStore{client: client, prefix: "siteapi:login", now: time.Now}
}

func (s *RedisAttemptStore) failKey(key string) string { return s.prefix + ":fail:" + key }
func (s *RedisAttemptStore) lockKey(key string) string { return s.prefix + ":lock:" + key }

func (s *RedisAttemptStore) LockedFor(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.PTTL(ctx, s.lockKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis pttl failed: %w", err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func (s *RedisAttemptStore) Fail(ctx context.Context, key string, max int, window, lockFor time.Duration) (bool, error) {
	failKey := s.failKey(key)
	now := s.now()
	cutoff := now.Add(-window).UnixMilli()

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, failKey, "-inf", strconv.FormatInt(cutoff, 10))
	pipe.ZAdd(ctx, failKey, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: strconv.FormatInt(now.UnixNano(), 10) + ":" + uuid.NewString()[:8],
	})
	card := pipe.ZCard(ctx, failKey)
	pipe.PExpire(ctx, failKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis record failure failed: %w", err)
	}

	if card.Val() < int64(max) {
		return false, nil
	}

	pipe = s.client.TxPipeline()
	pipe.Set(ctx, s.lockKey(key), 1, lockFor)
	pipe.Del(ctx, failKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis lock failed: %w", err)
	}

	return true, nil
}

func (s *RedisAttemptStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.failKey(key), s.lockKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}
