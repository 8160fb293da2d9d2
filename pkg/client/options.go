package client

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

type options struct {
	logger          *slog.Logger
	telemetry       Telemetry
	tracerProvider  trace.TracerProvider
	whereMiddleware []WhereMiddleware
	operators       map[OperatorTag]OperatorFunc
	middleware      []Middleware
}

// Option configures a Client.
type Option func(*options)

// WithLogger sets the logger for the client and everything below it.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithTelemetry reports every operation to t.
func WithTelemetry(t Telemetry) Option {
	return func(o *options) {
		o.telemetry = t
	}
}

// WithTracerProvider sets the provider resolve spans are started on.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithWhereMiddleware adds filter rewrites run before every WHERE is
// compiled, e.g. to scope queries to a tenant.
func WithWhereMiddleware(mw ...WhereMiddleware) Option {
	return func(o *options) {
		o.whereMiddleware = append(o.whereMiddleware, mw...)
	}
}

// WithOperator registers a filter operator, replacing a built-in one with
// the same tag.
func WithOperator(tag OperatorTag, fn OperatorFunc) Option {
	return func(o *options) {
		if o.operators == nil {
			o.operators = make(map[OperatorTag]OperatorFunc)
		}
		o.operators[tag] = fn
	}
}

// WithMiddleware adds operation middleware.
func WithMiddleware(mw ...Middleware) Option {
	return func(o *options) {
		o.middleware = append(o.middleware, mw...)
	}
}
