// Package telemetry records query metrics and traces.
package telemetry

import (
	"context"
	"time"
)

// Telemetry receives one event per operation.
type Telemetry interface {
	// RecordQuery records a finished operation.
	RecordQuery(ctx context.Context, info QueryInfo)

	// RecordError records a failed operation.
	RecordError(ctx context.Context, info ErrorInfo)

	// RecordConnection records a connect or disconnect.
	RecordConnection(ctx context.Context, info ConnectionInfo)

	// Flush exports buffered data.
	Flush(ctx context.Context) error

	// Close releases the recorder.
	Close(ctx context.Context) error
}

// QueryInfo describes a finished operation.
type QueryInfo struct {
	// Model is the model queried.
	Model string

	// Operation is findMany, count, create, update and so on.
	Operation string

	Duration time.Duration
	Success  bool

	// Rows is the number of records returned or affected.
	Rows int64

	// Statements is the number of SQL statements issued.
	Statements int
}

// ErrorInfo describes a failed operation.
type ErrorInfo struct {
	Error     error
	Model     string
	Operation string

	// Query is the failing SQL, when known.
	Query string
}

// ConnectionInfo describes a connection event.
type ConnectionInfo struct {
	// Event is connect or disconnect.
	Event    string
	Duration time.Duration
	Success  bool

	OpenConnections int
}

// Config selects and configures a recorder.
type Config struct {
	// Type is noop, prometheus or opentelemetry.
	Type string

	// ServiceName names the tracer and prefixes nothing else.
	ServiceName string
}
