package cache

import (
	"context"

	"go.uber.org/zap"
)

// Invalidator drops cached admin views after writes. A nil cache makes every
// call a no-op.
type Invalidator struct {
	cache  Cache
	logger *zap.Logger
}

// NewInvalidator creates a new Invalidator
func NewInvalidator(c Cache, logger *zap.Logger) *Invalidator {
	return &Invalidator{cache: c, logger: logger}
}

// InvalidateInbox drops inbox statistics
func (ci *Invalidator) InvalidateInbox(ctx context.Context) {
	if ci == nil || ci.cache == nil {
		return
	}
	if err := ci.cache.Delete(ctx, KeyPrefixInboxStats); err != nil {
		ci.logger.Warn("[CacheInvalidator] failed to invalidate inbox stats", zap.Error(err))
	}
}

// InvalidateApplications drops application statistics
func (ci *Invalidator) InvalidateApplications(ctx context.Context) {
	if ci == nil || ci.cache == nil {
		return
	}
	if err := ci.cache.Delete(ctx, KeyPrefixApplicationStats); err != nil {
		ci.logger.Warn("[CacheInvalidator] failed to invalidate application stats", zap.Error(err))
	}
}

// InvalidateAnalytics drops every cached dashboard window
func (ci *Invalidator) InvalidateAnalytics(ctx context.Context) {
	if ci == nil || ci.cache == nil {
		return
	}
	if err := ci.cache.DeleteByPattern(ctx, KeyPrefixAnalytics+":*"); err != nil {
		ci.logger.Warn("[CacheInvalidator] failed to invalidate analytics", zap.Error(err))
	}
}
