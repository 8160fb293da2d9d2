package telemetry

import "context"

// NoopTelemetry discards everything.
type NoopTelemetry struct{}

// NewNoopTelemetry creates a no-op recorder.
func NewNoopTelemetry() *NoopTelemetry {
	return &NoopTelemetry{}
}

func (n *NoopTelemetry) RecordQuery(ctx context.Context, info QueryInfo)           {}
func (n *NoopTelemetry) RecordError(ctx context.Context, info ErrorInfo)           {}
func (n *NoopTelemetry) RecordConnection(ctx context.Context, info ConnectionInfo) {}
func (n *NoopTelemetry) Flush(ctx context.Context) error                           { return nil }
func (n *NoopTelemetry) Close(ctx context.Context) error                           { return nil }

var _ Telemetry = (*NoopTelemetry)(nil)
