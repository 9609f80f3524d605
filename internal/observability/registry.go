package observability

import "time"

// MetricsRegistry provides an interface for recording application metrics.
// This replaces direct access to global Prometheus metrics with dependency
// injection so handlers and services can be tested without a live registry.
type MetricsRegistry interface {
	// HTTP request metrics
	IncrementRequests(endpoint, method, status string)
	RecordRequestLatency(endpoint, method string, duration time.Duration)

	// Gate and serve metrics
	IncrementDecisions(outcome string)
	IncrementNoFills()

	// Event tracking metrics
	IncrementEvent(eventType string)
	IncrementFraudVerdict(reason string)
	IncrementRecordFailures(eventType string)

	// Rotation metrics
	IncrementRotationBatches()
	ObserveRotationBatchSize(size int)

	// Settings cache metrics
	IncrementSettingsReloads()
}

// PrometheusRegistry implements MetricsRegistry using the global Prometheus metrics.
type PrometheusRegistry struct{}

// NewPrometheusRegistry creates a new PrometheusRegistry.
func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

func (r *PrometheusRegistry) IncrementRequests(endpoint, method, status string) {
	RequestCount.WithLabelValues(endpoint, method, status).Inc()
}

func (r *PrometheusRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	RequestLatency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementDecisions(outcome string) {
	DecisionCount.WithLabelValues(outcome).Inc()
}

func (r *PrometheusRegistry) IncrementNoFills() {
	NoFillCount.Inc()
}

func (r *PrometheusRegistry) IncrementEvent(eventType string) {
	EventCount.WithLabelValues(eventType).Inc()
}

func (r *PrometheusRegistry) IncrementFraudVerdict(reason string) {
	if reason == "" {
		reason = "allowed"
	}
	FraudVerdictCount.WithLabelValues(reason).Inc()
}

func (r *PrometheusRegistry) IncrementRecordFailures(eventType string) {
	RecordFailures.WithLabelValues(eventType).Inc()
}

func (r *PrometheusRegistry) IncrementRotationBatches() {
	RotationBatchCount.Inc()
}

func (r *PrometheusRegistry) ObserveRotationBatchSize(size int) {
	RotationBatchSize.Observe(float64(size))
}

func (r *PrometheusRegistry) IncrementSettingsReloads() {
	SettingsReloads.Inc()
}

// NoOpRegistry implements MetricsRegistry with no-op methods for testing.
type NoOpRegistry struct{}

// NewNoOpRegistry creates a new NoOpRegistry.
func NewNoOpRegistry() *NoOpRegistry {
	return &NoOpRegistry{}
}

func (r *NoOpRegistry) IncrementRequests(endpoint, method, status string)                    {}
func (r *NoOpRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}
func (r *NoOpRegistry) IncrementDecisions(outcome string)                                    {}
func (r *NoOpRegistry) IncrementNoFills()                                                    {}
func (r *NoOpRegistry) IncrementEvent(eventType string)                                      {}
func (r *NoOpRegistry) IncrementFraudVerdict(reason string)                                  {}
func (r *NoOpRegistry) IncrementRecordFailures(eventType string)                             {}
func (r *NoOpRegistry) IncrementRotationBatches()                                            {}
func (r *NoOpRegistry) ObserveRotationBatchSize(size int)                                    {}
func (r *NoOpRegistry) IncrementSettingsReloads()                                            {}
