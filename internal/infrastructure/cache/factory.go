package cache

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	appbilling "github.com/medflow/backend/internal/application/billing"
	"github.com/medflow/backend/internal/infrastructure/config"
)

// ViewCacheFactory creates invoice view caches based on configuration
type ViewCacheFactory struct {
	redisConfig           config.RedisConfig
	ttl                   time.Duration
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// ViewCacheFactoryOption is a functional option for configuring the factory
type ViewCacheFactoryOption func(*ViewCacheFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) ViewCacheFactoryOption {
	return func(f *ViewCacheFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the in-memory cache
// when Redis is unavailable. Default is true (allow fallback).
func WithInMemoryFallback(allow bool) ViewCacheFactoryOption {
	return func(f *ViewCacheFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewViewCacheFactory creates a new factory
func NewViewCacheFactory(cfg config.RedisConfig, ttl time.Duration, opts ...ViewCacheFactoryOption) *ViewCacheFactory {
	f := &ViewCacheFactory{
		redisConfig:           cfg,
		ttl:                   ttl,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateCache creates a view cache, trying Redis first and falling back to
// the in-memory implementation when Redis is unavailable and fallback is
// allowed. A stale in-memory entry on one instance can serve an outdated
// view for up to the TTL in multi-instance deployments.
func (f *ViewCacheFactory) CreateCache() (appbilling.ViewCache, error) {
	cache, err := NewRedisInvoiceViewCache(f.redisConfig, f.ttl)
	if err == nil {
		f.logger.Info("using Redis invoice view cache")
		return cache, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for invoice view cache but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory invoice view cache",
		zap.Error(err),
	)
	return NewInMemoryInvoiceViewCache(f.ttl), nil
}
