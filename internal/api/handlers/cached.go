package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/seismolink/siteapi/internal/cache"
)

// cachedJSON serves the value stored at key, or computes it with load,
// caches it for ttl and serves it. X-Cache tells which happened.
func cachedJSON(
	w http.ResponseWriter,
	r *http.Request,
	c cache.Cache,
	logger *zap.Logger,
	key string,
	ttl time.Duration,
	load func(ctx context.Context) (any, error),
	fallback string,
) {
	ctx := r.Context()

	if c != nil {
		if cached, err := c.Get(ctx, key); err == nil && cached != nil {
			logger.Debug("[Cache] HIT", zap.String("key", key))
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "HIT")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(cached)
			return
		}
	}

	value, err := load(ctx)
	if err != nil {
		RenderServiceError(w, logger, err, fallback)
		return
	}

	if c != nil {
		data, err := json.Marshal(value)
		if err == nil {
			if cacheErr := c.Set(ctx, key, data, ttl); cacheErr != nil {
				logger.Warn("[Cache] failed to store", zap.String("key", key), zap.Error(cacheErr))
			}
		}
	}

	w.Header().Set("X-Cache", "MISS")
	RenderJSON(w, http.StatusOK, value)
}
