package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code", "service"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "service"},
	)

	// Database metrics
	dbQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"query_type", "service"},
	)

	// Order lifecycle metrics
	orderTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_transitions_total",
			Help: "Total number of order status transitions",
		},
		[]string{"from_status", "to_status", "result", "service"},
	)

	// Allocation metrics
	allocationAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allocation_attempts_total",
			Help: "Total number of technician allocation attempts",
		},
		[]string{"result", "service"},
	)

	allocationRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allocation_retries_total",
			Help: "Total number of allocation retries after concurrent modification",
		},
		[]string{"service"},
	)

	// Workload metrics
	technicianLoad = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "technician_current_load",
			Help: "Current number of active orders per technician",
		},
		[]string{"technician_id", "service"},
	)

	overdueOrders = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "overdue_orders",
			Help: "Number of in-flight orders past their expected duration",
		},
		[]string{"service"},
	)

	// System metrics
	systemErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "system_errors_total",
			Help: "Total number of system errors",
		},
		[]string{"error_type", "service", "component"},
	)
)

// MetricsCollector handles Prometheus metrics collection
type MetricsCollector struct {
	serviceName string
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(serviceName string) *MetricsCollector {
	// Register metrics
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		dbQueryDuration,
		orderTransitionsTotal,
		allocationAttemptsTotal,
		allocationRetriesTotal,
		technicianLoad,
		overdueOrders,
		systemErrors,
	)

	return &MetricsCollector{
		serviceName: serviceName,
	}
}

// RecordHTTPRequest records HTTP request metrics
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, endpoint, statusCode, m.serviceName).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, m.serviceName).Observe(duration.Seconds())
}

// RecordDBQuery records database query metrics
func (m *MetricsCollector) RecordDBQuery(queryType string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(queryType, m.serviceName).Observe(duration.Seconds())
}

// RecordOrderTransition records an order status transition attempt
func (m *MetricsCollector) RecordOrderTransition(from, to, result string) {
	orderTransitionsTotal.WithLabelValues(from, to, result, m.serviceName).Inc()
}

// RecordAllocationAttempt records a technician allocation outcome
func (m *MetricsCollector) RecordAllocationAttempt(result string) {
	allocationAttemptsTotal.WithLabelValues(result, m.serviceName).Inc()
}

// RecordAllocationRetry records a retry after a concurrency conflict
func (m *MetricsCollector) RecordAllocationRetry() {
	allocationRetriesTotal.WithLabelValues(m.serviceName).Inc()
}

// RecordTechnicianLoad records a technician's current load
func (m *MetricsCollector) RecordTechnicianLoad(technicianID string, load int) {
	technicianLoad.WithLabelValues(technicianID, m.serviceName).Set(float64(load))
}

// RecordOverdueOrders records the size of the overdue set
func (m *MetricsCollector) RecordOverdueOrders(count int) {
	overdueOrders.WithLabelValues(m.serviceName).Set(float64(count))
}

// RecordSystemError records system error metrics
func (m *MetricsCollector) RecordSystemError(errorType, component string) {
	systemErrors.WithLabelValues(errorType, m.serviceName, component).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.Handler()
}

// HTTPMiddleware creates middleware for HTTP request metrics
func (m *MetricsCollector) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)
		statusCode := strconv.Itoa(wrapper.statusCode)

		m.RecordHTTPRequest(r.Method, r.URL.Path, statusCode, duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
