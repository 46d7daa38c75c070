package cache

import (
	"context"
	"time"
)

// NoOpCache never stores anything. It backs DISABLE_CACHE so every admin
// view is read from the database.
type NoOpCache struct{}

// NewNoOpCache creates a new no-op cache
func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

func (NoOpCache) Get(context.Context, string) ([]byte, error) { return nil, ErrCacheMiss }

func (NoOpCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (NoOpCache) Delete(context.Context, string) error { return nil }

func (NoOpCache) DeleteByPattern(context.Context, string) error { return nil }

func (NoOpCache) Close() error { return nil }
