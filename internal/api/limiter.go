package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mhttp "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"

	"github.com/seismolink/siteapi/internal/api/handlers"
)

// Default rates: 100 requests per 15 minutes on the API, 5 form submissions
// per hour
var (
	DefaultGeneralRate = limiter.Rate{Period: 15 * time.Minute, Limit: 100}
	DefaultFormRate    = limiter.Rate{Period: time.Hour, Limit: 5}
)

const limiterPrefix = "siteapi:limiter"

// NewLimiterStore returns a Redis store when client is set, a memory store
// otherwise
func NewLimiterStore(client *redis.Client) (limiter.Store, error) {
	opts := limiter.StoreOptions{
		Prefix:          limiterPrefix,
		CleanUpInterval: time.Minute,
	}

	if client == nil {
		return memory.NewStoreWithOptions(opts), nil
	}

	store, err := sredis.NewStoreWithOptions(client, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis limiter store: %w", err)
	}
	return store, nil
}

// RateLimit limits requests per client IP. Buckets are named so several
// limiters can share one store.
func RateLimit(store limiter.Store, bucket string, rate limiter.Rate, logger *zap.Logger) func(http.Handler) http.Handler {
	mw := mhttp.NewMiddleware(
		limiter.New(store, rate),
		mhttp.WithKeyGetter(func(r *http.Request) string {
			return bucket + ":" + handlers.ClientIP(r)
		}),
		mhttp.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			logger.Warn("[RateLimit] limit reached",
				zap.String("bucket", bucket),
				zap.String("ip", handlers.ClientIP(r)),
				zap.String("path", r.URL.Path),
			)
			handlers.RenderError(w, http.StatusTooManyRequests, "Too many requests, please try again later.")
		}),
		mhttp.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("[RateLimit] store error", zap.String("bucket", bucket), zap.Error(err))
			handlers.RenderError(w, http.StatusInternalServerError, "Internal server error")
		}),
	)

	return mw.Handler
}
