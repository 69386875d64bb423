// Package metrics holds the prometheus collectors of the auth server. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	tokensIssued     *prometheus.CounterVec
	grantsDenied     *prometheus.CounterVec
	tfaChallenges    *prometheus.CounterVec
	permissionWrites *prometheus.CounterVec
	sweepFailures    prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them on a fresh registry along
// with the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_tokens_issued_total",
			Help: "Access tokens issued, by grant type.",
		}, []string{"grant_type"}),

		grantsDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_grant_denied_total",
			Help: "Denied token grants, by grant type and OAuth2 error code.",
		}, []string{"grant_type", "reason"}),

		tfaChallenges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_tfa_challenges_total",
			Help: "TFA pending tokens issued, by OTP strategy.",
		}, []string{"strategy"}),

		permissionWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_permission_writes_total",
			Help: "Role and permission writes per source.",
		}, []string{"operation", "mode", "result"}), // result: ok|error

		sweepFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warden_privilege_sweep_failures_total",
			Help: "Tenants whose removed-privilege sweep failed.",
		}),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warden_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),

		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "warden_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.tokensIssued,
		m.grantsDenied,
		m.tfaChallenges,
		m.permissionWrites,
		m.sweepFailures,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) TokenIssued(grantType string) {
	if m == nil {
		return
	}
	m.tokensIssued.WithLabelValues(grantType).Inc()
}

func (m *Metrics) GrantDenied(grantType, reason string) {
	if m == nil {
		return
	}
	m.grantsDenied.WithLabelValues(grantType, reason).Inc()
}

func (m *Metrics) TfaChallenge(strategy string) {
	if m == nil {
		return
	}
	m.tfaChallenges.WithLabelValues(strategy).Inc()
}

func (m *Metrics) PermissionWrite(operation, mode string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.permissionWrites.WithLabelValues(operation, mode, result).Inc()
}

func (m *Metrics) SweepFailure() {
	if m == nil {
		return
	}
	m.sweepFailures.Inc()
}

// Instrument records count and latency of requests served by next under the
// fixed route label, so path parameters do not explode cardinality.
func (m *Metrics) Instrument(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(sw.code)).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
