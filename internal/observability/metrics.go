package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// total requests per endpoint, method and status code
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adcore_requests_total",
			Help: "Total API requests received",
		},
		[]string{"endpoint", "method", "status"},
	)

	// request latency in seconds per endpoint/method
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adcore_request_duration_seconds",
			Help:    "Histogram of request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// hosted-ad decisions, labelled by outcome
	DecisionCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adcore_decisions_total",
			Help: "Total hosted-ad gate decisions",
		},
		[]string{"outcome"},
	)

	// serve requests that found no eligible creative
	NoFillCount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "adcore_nofill_total",
			Help: "Total empty serve responses",
		},
	)

	// events recorded, labelled by type (impression, click, conversion)
	EventCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adcore_events_total",
			Help: "Total events recorded",
		},
		[]string{"type"},
	)

	// fraud verdicts, labelled by reason code ("allowed" for clean traffic)
	FraudVerdictCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adcore_fraud_verdicts_total",
			Help: "Total click fraud verdicts by reason",
		},
		[]string{"reason"},
	)

	// best-effort writes that failed and were swallowed
	RecordFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adcore_record_failures_total",
			Help: "Total best-effort event writes that failed",
		},
		[]string{"type"},
	)

	// rotation batches created and their sizes
	RotationBatchCount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "adcore_rotation_batches_total",
			Help: "Total featured rotation batches created",
		},
	)
	RotationBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "adcore_rotation_batch_size",
			Help:    "Histogram of rotation batch sizes",
			Buckets: prometheus.LinearBuckets(0, 50, 11),
		},
	)

	// settings cache reloads from Postgres
	SettingsReloads = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "adcore_settings_reloads_total",
			Help: "Total ad settings reloads from storage",
		},
	)
)

func init() {
	// register all metrics
	prometheus.MustRegister(
		RequestCount,
		RequestLatency,
		DecisionCount,
		NoFillCount,
		EventCount,
		FraudVerdictCount,
		RecordFailures,
		RotationBatchCount,
		RotationBatchSize,
		SettingsReloads,
	)
}
