package logger

import (
	"context"

	"go.uber.org/zap"
)

// contextKey keeps this package's context values off string keys
type contextKey string

const (
	loggerKey    contextKey = "logger"
	requestIDKey contextKey = "request_id"
	siteIDKey    contextKey = "site_id"
	userIDKey    contextKey = "user_id"
)

// WithContext attaches the logger to the context so downstream code can
// log with the request's accumulated fields.
func WithContext(ctx context.Context, log *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, log)
}

// FromContext returns the logger carried by the context, or a no-op
// logger when none was attached.
func FromContext(ctx context.Context) *zap.Logger {
	if log, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return log
	}
	return zap.NewNop()
}

// WithRequestID stores the request ID and returns the context with a
// logger enriched by it.
func WithRequestID(ctx context.Context, log *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	log = log.With(zap.String("request_id", requestID))
	return WithContext(ctx, log), log
}

// WithSiteID stores the caller's site and returns the context with a
// logger enriched by it.
func WithSiteID(ctx context.Context, log *zap.Logger, siteID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, siteIDKey, siteID)
	log = log.With(zap.String("site_id", siteID))
	return WithContext(ctx, log), log
}

// WithUserID stores the caller's user ID and returns the context with a
// logger enriched by it.
func WithUserID(ctx context.Context, log *zap.Logger, userID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, userIDKey, userID)
	log = log.With(zap.String("user_id", userID))
	return WithContext(ctx, log), log
}

// GetRequestID returns the request ID from the context, if any
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// GetSiteID returns the site ID from the context, if any
func GetSiteID(ctx context.Context) string {
	id, _ := ctx.Value(siteIDKey).(string)
	return id
}

// GetUserID returns the user ID from the context, if any
func GetUserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
