package requestctx

import (
	"context"

	"go.uber.org/zap"
)

type contextKey string

const (
	loggerContextKey      contextKey = "github.com/luxeplan/api/internal/platform/requestctx/logger"
	traceContextKey       contextKey = "github.com/luxeplan/api/internal/platform/requestctx/trace"
	environmentContextKey contextKey = "github.com/luxeplan/api/internal/platform/requestctx/environment"
)

// EnvironmentProduction marks deployments where internal error detail must not leak to callers.
const EnvironmentProduction = "production"

var noopLogger = zap.NewNop()

// TraceInfo captures trace metadata propagated through request context.
type TraceInfo struct {
	TraceID   string
	SpanID    string
	Sampled   bool
	ProjectID string
}

// WithLogger stores the logger in context for downstream consumers.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = noopLogger
	}
	return context.WithValue(ctx, loggerContextKey, logger)
}

// Logger retrieves the zap logger from context or returns a no-op logger.
func Logger(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return noopLogger
	}
	if logger, ok := ctx.Value(loggerContextKey).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return noopLogger
}

// LookupLogger reports the logger stored on the context, if any.
func LookupLogger(ctx context.Context) (*zap.Logger, bool) {
	if ctx == nil {
		return nil, false
	}
	logger, ok := ctx.Value(loggerContextKey).(*zap.Logger)
	return logger, ok && logger != nil
}

// WithTrace stores the trace metadata on the context for downstream usage.
func WithTrace(ctx context.Context, info TraceInfo) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, traceContextKey, info)
}

// Trace retrieves the trace metadata from context when available.
func Trace(ctx context.Context) (TraceInfo, bool) {
	if ctx == nil {
		return TraceInfo{}, false
	}
	info, ok := ctx.Value(traceContextKey).(TraceInfo)
	return info, ok
}

// TraceID extracts the trace identifier from context when present.
func TraceID(ctx context.Context) string {
	info, ok := Trace(ctx)
	if !ok {
		return ""
	}
	return info.TraceID
}

// WithEnvironment records the deployment environment name on the context.
func WithEnvironment(ctx context.Context, env string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, environmentContextKey, env)
}

// IsProduction reports whether the request is served by a production deployment.
func IsProduction(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	env, _ := ctx.Value(environmentContextKey).(string)
	return env == EnvironmentProduction
}
