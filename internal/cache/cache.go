package cache

import (
	"context"
	"strconv"
	"time"
)

// Cache interface for caching operations
type Cache interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// DeleteByPattern removes all values matching a pattern (e.g., "cache:admin:*")
	DeleteByPattern(ctx context.Context, pattern string) error

	// Close closes the cache connection
	Close() error
}

// Key prefixes for admin dashboard caching
const (
	// KeyPrefixAnalytics is the prefix for the analytics dashboard
	KeyPrefixAnalytics = "cache:admin:analytics"

	// KeyPrefixInboxStats is the key for inbox statistics
	KeyPrefixInboxStats = "cache:admin:inbox:stats"

	// KeyPrefixApplicationStats is the key for application statistics
	KeyPrefixApplicationStats = "cache:admin:applications:stats"
)

// TTL configurations for different cache types
const (
	// TTLAnalytics is the TTL for the analytics dashboard (60 seconds)
	TTLAnalytics = 60 * time.Second

	// TTLStats is the TTL for inbox and application statistics (30 seconds)
	TTLStats = 30 * time.Second
)

// AnalyticsKey is the cache key of the dashboard for a window of days
func AnalyticsKey(days int) string {
	return KeyPrefixAnalytics + ":" + strconv.Itoa(days)
}
