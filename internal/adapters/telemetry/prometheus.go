package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusTelemetry exports operation metrics through a Prometheus
// registry.
type PrometheusTelemetry struct {
	registry *prometheus.Registry

	queryDuration *prometheus.HistogramVec
	queryTotal    *prometheus.CounterVec
	rowsTotal     *prometheus.CounterVec
	errorTotal    *prometheus.CounterVec
	connections   *prometheus.GaugeVec
}

// NewPrometheusTelemetry creates a recorder with its own registry.
func NewPrometheusTelemetry(config *Config) *PrometheusTelemetry {
	p := &PrometheusTelemetry{
		registry: prometheus.NewRegistry(),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relquery_query_duration_seconds",
			Help:    "Duration of relquery operations.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}, []string{"model", "operation"}),
		queryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relquery_queries_total",
			Help: "Operations by outcome.",
		}, []string{"model", "operation", "status"}),
		rowsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relquery_rows_total",
			Help: "Records returned or affected.",
		}, []string{"model", "operation"}),
		errorTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relquery_errors_total",
			Help: "Failed operations.",
		}, []string{"model", "operation"}),
		connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relquery_open_connections",
			Help: "Open connections after the last connection event.",
		}, []string{"event"}),
	}
	p.registry.MustRegister(p.queryDuration, p.queryTotal, p.rowsTotal, p.errorTotal, p.connections)
	return p
}

// Registry returns the registry to expose, e.g. through promhttp.
func (p *PrometheusTelemetry) Registry() *prometheus.Registry {
	return p.registry
}

// RecordQuery observes duration and counts the outcome.
func (p *PrometheusTelemetry) RecordQuery(ctx context.Context, info QueryInfo) {
	p.queryDuration.WithLabelValues(info.Model, info.Operation).Observe(info.Duration.Seconds())

	status := "success"
	if !info.Success {
		status = "error"
	}
	p.queryTotal.WithLabelValues(info.Model, info.Operation, status).Inc()
	if info.Rows > 0 {
		p.rowsTotal.WithLabelValues(info.Model, info.Operation).Add(float64(info.Rows))
	}
}

// RecordError counts a failure.
func (p *PrometheusTelemetry) RecordError(ctx context.Context, info ErrorInfo) {
	p.errorTotal.WithLabelValues(info.Model, info.Operation).Inc()
}

// RecordConnection sets the open connection gauge.
func (p *PrometheusTelemetry) RecordConnection(ctx context.Context, info ConnectionInfo) {
	p.connections.WithLabelValues(info.Event).Set(float64(info.OpenConnections))
}

// Flush is a no-op; Prometheus pulls.
func (p *PrometheusTelemetry) Flush(ctx context.Context) error {
	return nil
}

// Close unregisters the collectors.
func (p *PrometheusTelemetry) Close(ctx context.Context) error {
	p.registry.Unregister(p.queryDuration)
	p.registry.Unregister(p.queryTotal)
	p.registry.Unregister(p.rowsTotal)
	p.registry.Unregister(p.errorTotal)
	p.registry.Unregister(p.connections)
	return nil
}

var _ Telemetry = (*PrometheusTelemetry)(nil)
