package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, metrics *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	require.Contains(t, body, `eaxy_http_requests_total{code="418",route="/test"} 1`)
	require.Contains(t, body, `eaxy_http_request_duration_seconds_bucket{route="/test"`)
}

func TestLedgerCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.RecordWrite("create", "entrada")
	metrics.RecordWrite("create", "entrada")
	metrics.LoginAttempt("failure")
	metrics.BackupSnapshot("ok")

	body := scrape(t, metrics)
	require.Contains(t, body, `eaxy_ledger_record_writes_total{action="create",kind="entrada"} 2`)
	require.Contains(t, body, `eaxy_login_attempts_total{outcome="failure"} 1`)
	require.Contains(t, body, `eaxy_backup_snapshots_total{outcome="ok"} 1`)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.RecordWrite("create", "cash")
	metrics.LoginAttempt("success")

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	require.NotNil(t, metrics.Middleware(next))

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.False(t, strings.Contains(rr.Body.String(), "eaxy_"))
}
