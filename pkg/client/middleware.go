package client

import (
	"context"
	"log/slog"
	"time"

	"github.com/satishbabariya/relquery/internal/logging"
)

// QueryInfo describes the operation passing through the middleware chain.
type QueryInfo struct {
	// Model is the model operated on.
	Model string

	// Operation is findMany, findUnique, count, create, update and so on.
	Operation string

	// Args is the operation's Query, CreateArgs, UpdateArgs or DeleteArgs.
	Args any

	StartTime time.Time
}

// Next continues the chain and returns the operation's result.
type Next func(ctx context.Context) (any, error)

// Middleware wraps every operation. Middleware run in the order they were
// added; the first one added is the outermost.
type Middleware func(ctx context.Context, info QueryInfo, next Next) (any, error)

func chain(middleware []Middleware, info QueryInfo, final Next) Next {
	next := final
	for i := len(middleware) - 1; i >= 0; i-- {
		mw, inner := middleware[i], next
		next = func(ctx context.Context) (any, error) {
			return mw(ctx, info, inner)
		}
	}
	return next
}

// LoggingMiddleware logs every operation at debug level and failures at
// warn level.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	logger = logging.OrDiscard(logger)
	return func(ctx context.Context, info QueryInfo, next Next) (any, error) {
		result, err := next(ctx)
		attrs := []any{
			"model", info.Model,
			"operation", info.Operation,
			"duration", time.Since(info.StartTime),
		}
		if id := logging.TraceID(ctx); id != "" {
			attrs = append(attrs, "trace_id", id)
		}
		if err != nil {
			logger.WarnContext(ctx, "operation failed", append(attrs, "error", err)...)
		} else {
			logger.DebugContext(ctx, "operation completed", attrs...)
		}
		return result, err
	}
}

// MetricsMiddleware calls observe with the outcome of every operation.
func MetricsMiddleware(observe func(info QueryInfo, duration time.Duration, err error)) Middleware {
	return func(ctx context.Context, info QueryInfo, next Next) (any, error) {
		result, err := next(ctx)
		if observe != nil {
			observe(info, time.Since(info.StartTime), err)
		}
		return result, err
	}
}

// TimeoutMiddleware bounds every operation by d.
func TimeoutMiddleware(d time.Duration) Middleware {
	return func(ctx context.Context, info QueryInfo, next Next) (any, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return next(ctx)
	}
}
