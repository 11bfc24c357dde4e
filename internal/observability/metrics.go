package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the thematic screener service.
// Metrics are organized by subsystem: screenings, Bigdata API calls and HTTP.
type Metrics struct {
	// ScreeningsSubmitted counts requests accepted by the API.
	ScreeningsSubmitted prometheus.Counter

	// ScreeningsStarted counts background tasks that moved to in_progress.
	ScreeningsStarted prometheus.Counter

	// ScreeningsCompleted counts screenings that produced a report.
	ScreeningsCompleted prometheus.Counter

	// ScreeningsFailed counts failed screenings, labeled by stage (resolve, workflow, report, store).
	ScreeningsFailed *prometheus.CounterVec

	// ScreeningDuration observes the end-to-end duration of screenings in seconds.
	ScreeningDuration prometheus.Histogram

	// CompaniesResolved observes the number of companies handed to the workflow.
	CompaniesResolved prometheus.Histogram

	// ProgressEvents counts progress messages received from the workflow.
	ProgressEvents prometheus.Counter

	// BigdataRequests counts Bigdata API operations, labeled by operation and outcome.
	BigdataRequests *prometheus.CounterVec

	// BigdataRequestDuration observes Bigdata API operation duration in seconds.
	BigdataRequestDuration *prometheus.HistogramVec

	// HTTPRequests counts served HTTP requests, labeled by method, route and status code.
	HTTPRequests *prometheus.CounterVec

	// HTTPRequestDuration observes HTTP handler duration in seconds.
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a Metrics instance registered with the default registry.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegistry(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a Metrics instance registered with reg.
func NewMetricsWithRegistry(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Screenings
		ScreeningsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "screenings_submitted_total",
			Help:      "Total number of screening requests accepted",
		}),
		ScreeningsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "screenings_started_total",
			Help:      "Total number of screenings started",
		}),
		ScreeningsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "screenings_completed_total",
			Help:      "Total number of screenings completed successfully",
		}),
		ScreeningsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "screenings_failed_total",
			Help:      "Total number of screenings that failed",
		}, []string{"stage"}),
		ScreeningDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "screening_duration_seconds",
			Help:      "Duration of screenings in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200, 1800, 3600},
		}),
		CompaniesResolved: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "companies_resolved",
			Help:      "Number of companies resolved per screening",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		ProgressEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "progress_events_total",
			Help:      "Total number of workflow progress messages received",
		}),

		// Bigdata API
		BigdataRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bigdata",
			Name:      "requests_total",
			Help:      "Total number of Bigdata API operations",
		}, []string{"operation", "outcome"}),
		BigdataRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bigdata",
			Name:      "request_duration_seconds",
			Help:      "Duration of Bigdata API operations in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 300, 1800},
		}, []string{"operation"}),

		// HTTP
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests served",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"}),
	}
}

// RecordScreeningSubmitted records an accepted request.
func (m *Metrics) RecordScreeningSubmitted() {
	m.ScreeningsSubmitted.Inc()
}

// RecordScreeningStarted records that a screening moved to in_progress.
func (m *Metrics) RecordScreeningStarted() {
	m.ScreeningsStarted.Inc()
}

// RecordScreeningCompleted records a successful screening.
func (m *Metrics) RecordScreeningCompleted(durationSeconds float64) {
	m.ScreeningsCompleted.Inc()
	m.ScreeningDuration.Observe(durationSeconds)
}

// RecordScreeningFailed records a failed screening at stage.
func (m *Metrics) RecordScreeningFailed(stage string, durationSeconds float64) {
	m.ScreeningsFailed.WithLabelValues(stage).Inc()
	m.ScreeningDuration.Observe(durationSeconds)
}

// RecordCompaniesResolved records the size of a resolved universe.
func (m *Metrics) RecordCompaniesResolved(count int) {
	m.CompaniesResolved.Observe(float64(count))
}

// RecordProgressEvent records one workflow progress message.
func (m *Metrics) RecordProgressEvent() {
	m.ProgressEvents.Inc()
}

// RecordBigdataRequest records a Bigdata API operation.
func (m *Metrics) RecordBigdataRequest(operation string, err error, durationSeconds float64) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.BigdataRequests.WithLabelValues(operation, outcome).Inc()
	m.BigdataRequestDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordHTTPRequest records a served HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route, status string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(durationSeconds)
}
