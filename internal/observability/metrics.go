package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "itconnect"

// Metrics holds the Prometheus collectors exported by the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	errors           *prometheus.CounterVec
	authzDecisions   *prometheus.CounterVec
	sessionStates    *prometheus.CounterVec
	droppedFields    *prometheus.CounterVec
	mirrorOperations *prometheus.CounterVec
}

// NewMetrics registers collectors on reg. Pass prometheus.DefaultRegisterer in
// production and prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "Error responses by route and error code.",
		}, []string{"route", "method", "code"}),
		authzDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authorization_decisions_total",
			Help:      "Capability checks by capability and outcome.",
		}, []string{"capability", "outcome"}),
		sessionStates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_resolutions_total",
			Help:      "Session resolutions by resulting state.",
		}, []string{"state"}),
		droppedFields: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profile_fields_dropped_total",
			Help:      "Profile update fields removed by the access filter.",
		}, []string{"access_level"}),
		mirrorOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mirror_operations_total",
			Help:      "Redis mirror reads and writes by result.",
		}, []string{"operation", "result"}),
	}
}

// RecordRequest tracks a completed HTTP request.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError tracks an error response.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

// RecordAuthorization tracks a capability decision.
func (m *Metrics) RecordAuthorization(capability string, allowed bool) {
	if m == nil {
		return
	}
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	m.authzDecisions.WithLabelValues(capability, outcome).Inc()
}

// RecordSessionState tracks a session resolution.
func (m *Metrics) RecordSessionState(state string) {
	if m == nil {
		return
	}
	m.sessionStates.WithLabelValues(state).Inc()
}

// RecordDroppedFields adds count fields removed at the given access level.
func (m *Metrics) RecordDroppedFields(accessLevel string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.droppedFields.WithLabelValues(accessLevel).Add(float64(count))
}

// RecordMirror tracks a mirror operation ("get"/"put"/"evict") and its result.
func (m *Metrics) RecordMirror(operation, result string) {
	if m == nil {
		return
	}
	m.mirrorOperations.WithLabelValues(operation, result).Inc()
}
