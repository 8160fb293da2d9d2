package telemetry

import "fmt"

// TelemetryType names a recorder.
type TelemetryType string

const (
	TypeNoop          TelemetryType = "noop"
	TypePrometheus    TelemetryType = "prometheus"
	TypeOpenTelemetry TelemetryType = "opentelemetry"
)

// NewTelemetry creates the recorder config names. A nil config or empty
// type gives the no-op recorder.
func NewTelemetry(config *Config) (Telemetry, error) {
	if config == nil {
		return NewNoopTelemetry(), nil
	}

	switch TelemetryType(config.Type) {
	case TypeNoop, "":
		return NewNoopTelemetry(), nil
	case TypePrometheus:
		return NewPrometheusTelemetry(config), nil
	case TypeOpenTelemetry, "otel":
		return NewOpenTelemetryAdapter(config, nil), nil
	default:
		return nil, fmt.Errorf("unknown telemetry type: %s", config.Type)
	}
}
