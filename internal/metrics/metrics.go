// Package metrics registers the pipeline's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Event pipeline metrics
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderflow_events_total",
			Help: "Total number of order events consumed",
		},
		[]string{"outcome"},
	)

	DeadLettersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderflow_dead_letters_total",
			Help: "Total number of events routed to the dead letter stream",
		},
		[]string{"reason"},
	)

	TransformDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orderflow_transform_duration_seconds",
			Help:    "Duration of event normalization and validation in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Storage metrics
	WriteRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orderflow_write_retries_total",
			Help: "Total number of retried event store writes",
		},
	)

	WriteFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orderflow_write_failures_total",
			Help: "Total number of event store writes that exhausted retries",
		},
	)

	WriteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orderflow_write_duration_seconds",
			Help:    "Duration of event store writes in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Aggregation metrics
	OrdersTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "orderflow_orders_tracked",
			Help: "Number of distinct orders in the latest-state view",
		},
	)

	StateReplacements = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orderflow_state_replacements_total",
			Help: "Total number of latest-state replacements by newer events",
		},
	)

	StaleEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orderflow_stale_events_total",
			Help: "Total number of events older than the tracked order state",
		},
	)

	// Conversion upload metrics
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orderflow_uploads_total",
			Help: "Total number of conversion upload attempts by result",
		},
		[]string{"result"},
	)

	UploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orderflow_upload_duration_seconds",
			Help:    "Duration of conversion uploads in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Outcome label values for EventsTotal.
const (
	OutcomeStored   = "stored"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
