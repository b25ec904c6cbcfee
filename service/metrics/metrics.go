package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Source Metrics
	sourceFetchesTotal   *prometheus.CounterVec
	sourceFetchDuration  *prometheus.HistogramVec
	sourceRetries        *prometheus.CounterVec
	sourceRecordsFetched *prometheus.CounterVec

	// Reconciliation Metrics
	reconciliationsTotal   *prometheus.CounterVec
	reconcileDuration      *prometheus.HistogramVec
	reconcileDiagnostics   *prometheus.CounterVec
	transactionsByStatus   *prometheus.GaugeVec
	reconcileCacheRequests *prometheus.CounterVec

	// Workflow Metrics
	syncWorkflowDuration        *prometheus.HistogramVec
	syncWorkflowExecutionsTotal *prometheus.CounterVec
	syncActivityDuration        *prometheus.HistogramVec
	statusChangesTotal          *prometheus.CounterVec

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Source Metrics
		sourceFetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "source_fetches_total",
				Help: "Total number of source list fetches by source and status",
			},
			[]string{"source", "status"},
		),
		sourceFetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "source_fetch_duration_seconds",
				Help:    "Duration of source list fetches in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"source"},
		),
		sourceRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "source_fetch_retries_total",
				Help: "Total number of source fetch retry attempts",
			},
			[]string{"source"},
		),
		sourceRecordsFetched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "source_records_fetched_total",
				Help: "Total number of records fetched per source list",
			},
			[]string{"source"},
		),

		// Reconciliation Metrics
		reconciliationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconciliations_total",
				Help: "Total number of reconciliation runs by status",
			},
			[]string{"status"},
		),
		reconcileDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reconcile_duration_seconds",
				Help:    "Duration of a full load and reconcile in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"status"},
		),
		reconcileDiagnostics: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconcile_diagnostics_total",
				Help: "Total number of reconciliation diagnostics by kind",
			},
			[]string{"kind"},
		),
		transactionsByStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "multisig_transactions",
				Help: "Number of reconciled transactions per account and status",
			},
			[]string{"account", "status"},
		),
		reconcileCacheRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconcile_cache_requests_total",
				Help: "Total number of reconciliation cache lookups by result",
			},
			[]string{"result"},
		),

		// Workflow Metrics
		syncWorkflowDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sync_workflow_duration_seconds",
				Help:    "Duration of sync workflow execution in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"account", "status"},
		),
		syncWorkflowExecutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_workflow_executions_total",
				Help: "Total number of sync workflow executions",
			},
			[]string{"account", "status"},
		),
		syncActivityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sync_activity_duration_seconds",
				Help:    "Duration of sync workflow activities in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"activity", "account"},
		),
		statusChangesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "status_changes_total",
				Help: "Total number of observed transaction status changes",
			},
			[]string{"account", "status"},
		),

		// Database Metrics
		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Source metric helpers

// RecordSourceFetch records one attempt-inclusive fetch of a source list.
func (m *Metrics) RecordSourceFetch(source string, count int, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.sourceFetchesTotal.WithLabelValues(source, status).Inc()
	m.sourceFetchDuration.WithLabelValues(source).Observe(duration)
	if err == nil {
		m.sourceRecordsFetched.WithLabelValues(source).Add(float64(count))
	}
}

// RecordSourceRetry records a retry of a failed source fetch.
func (m *Metrics) RecordSourceRetry(source string) {
	m.sourceRetries.WithLabelValues(source).Inc()
}

// Reconciliation metric helpers

// RecordReconcile records a reconciliation run.
func (m *Metrics) RecordReconcile(duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.reconciliationsTotal.WithLabelValues(status).Inc()
	m.reconcileDuration.WithLabelValues(status).Observe(duration)
}

// RecordDiagnostics records diagnostic counts keyed by kind.
func (m *Metrics) RecordDiagnostics(counts map[string]int) {
	for kind, n := range counts {
		m.reconcileDiagnostics.WithLabelValues(kind).Add(float64(n))
	}
}

// SetTransactionsByStatus sets the per-status gauge of an account.
func (m *Metrics) SetTransactionsByStatus(account string, counts map[string]int) {
	for status, n := range counts {
		m.transactionsByStatus.WithLabelValues(account, status).Set(float64(n))
	}
}

// RecordCacheLookup records a reconciliation cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.reconcileCacheRequests.WithLabelValues(result).Inc()
}

// Workflow metric helpers

// RecordWorkflowDuration records workflow execution duration.
func (m *Metrics) RecordWorkflowDuration(account, status string, duration float64) {
	m.syncWorkflowDuration.WithLabelValues(account, status).Observe(duration)
	m.syncWorkflowExecutionsTotal.WithLabelValues(account, status).Inc()
}

// RecordActivityDuration records activity execution duration.
func (m *Metrics) RecordActivityDuration(activity, account string, duration float64) {
	m.syncActivityDuration.WithLabelValues(activity, account).Observe(duration)
}

// RecordStatusChange records a transaction moving into status.
func (m *Metrics) RecordStatusChange(account, status string) {
	m.statusChangesTotal.WithLabelValues(account, status).Inc()
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
