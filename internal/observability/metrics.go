package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the API and the ledger.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	recordWrites    *prometheus.CounterVec
	loginAttempts   *prometheus.CounterVec
	backupsTotal    *prometheus.CounterVec
}

// NewMetrics initialises the registry and the base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eaxy_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "eaxy_http_request_duration_seconds",
		Help:    "HTTP request duration by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	writes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eaxy_ledger_record_writes_total",
		Help: "Ledger record writes by action and kind.",
	}, []string{"action", "kind"})
	logins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eaxy_login_attempts_total",
		Help: "Login attempts by outcome.",
	}, []string{"outcome"})
	backups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eaxy_backup_snapshots_total",
		Help: "Office backup snapshots by outcome.",
	}, []string{"outcome"})
	registry.MustRegister(requests, duration, writes, logins, backups)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		recordWrites:    writes,
		loginAttempts:   logins,
		backupsTotal:    backups,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency per chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// RecordWrite counts a ledger write ("create", "update", "delete").
// Offices are deliberately not a label.
func (m *Metrics) RecordWrite(action, kind string) {
	if m == nil {
		return
	}
	m.recordWrites.WithLabelValues(action, kind).Inc()
}

// LoginAttempt counts a login by outcome ("success", "failure", "locked").
func (m *Metrics) LoginAttempt(outcome string) {
	if m == nil {
		return
	}
	m.loginAttempts.WithLabelValues(outcome).Inc()
}

// BackupSnapshot counts a backup snapshot by outcome.
func (m *Metrics) BackupSnapshot(outcome string) {
	if m == nil {
		return
	}
	m.backupsTotal.WithLabelValues(outcome).Inc()
}

// Registerer exposes the registry for custom metrics.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
