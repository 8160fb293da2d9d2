package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OpenTelemetryAdapter turns events into spans on a tracer provider.
type OpenTelemetryAdapter struct {
	tracer trace.Tracer
}

// NewOpenTelemetryAdapter creates a recorder on tp, or on the global tracer
// provider when tp is nil.
func NewOpenTelemetryAdapter(config *Config, tp trace.TracerProvider) *OpenTelemetryAdapter {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	name := "relquery"
	if config != nil && config.ServiceName != "" {
		name = config.ServiceName
	}
	return &OpenTelemetryAdapter{tracer: tp.Tracer(name)}
}

// RecordQuery emits a span covering the operation.
func (o *OpenTelemetryAdapter) RecordQuery(ctx context.Context, info QueryInfo) {
	end := time.Now()
	_, span := o.tracer.Start(ctx, "relquery."+info.Operation,
		trace.WithTimestamp(end.Add(-info.Duration)),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.operation", info.Operation),
			attribute.String("relquery.model", info.Model),
			attribute.Int64("relquery.rows", info.Rows),
			attribute.Int("relquery.statements", info.Statements),
		),
	)
	if !info.Success {
		span.SetStatus(codes.Error, "operation failed")
	}
	span.End(trace.WithTimestamp(end))
}

// RecordError emits a failed span carrying the error.
func (o *OpenTelemetryAdapter) RecordError(ctx context.Context, info ErrorInfo) {
	_, span := o.tracer.Start(ctx, "relquery.error", trace.WithAttributes(
		attribute.String("db.operation", info.Operation),
		attribute.String("relquery.model", info.Model),
	))
	if info.Query != "" {
		span.SetAttributes(attribute.String("db.statement", info.Query))
	}
	if info.Error != nil {
		span.RecordError(info.Error)
		span.SetStatus(codes.Error, info.Error.Error())
	}
	span.End()
}

// RecordConnection emits a span for the connection event.
func (o *OpenTelemetryAdapter) RecordConnection(ctx context.Context, info ConnectionInfo) {
	end := time.Now()
	_, span := o.tracer.Start(ctx, "relquery.connection."+info.Event,
		trace.WithTimestamp(end.Add(-info.Duration)),
		trace.WithAttributes(attribute.Int("relquery.open_connections", info.OpenConnections)),
	)
	if !info.Success {
		span.SetStatus(codes.Error, info.Event+" failed")
	}
	span.End(trace.WithTimestamp(end))
}

// Flush is a no-op; the tracer provider owns export.
func (o *OpenTelemetryAdapter) Flush(ctx context.Context) error {
	return nil
}

// Close is a no-op; the tracer provider owns shutdown.
func (o *OpenTelemetryAdapter) Close(ctx context.Context) error {
	return nil
}

var _ Telemetry = (*OpenTelemetryAdapter)(nil)
