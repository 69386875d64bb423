package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.TokenIssued("password")
	m.GrantDenied("password", "invalid_grant")
	m.TfaChallenge("embedded")
	m.PermissionWrite("update_roles", "config", nil)
	m.SweepFailure()

	h := m.Instrument("/x", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)
}

func TestCounters(t *testing.T) {
	m := New()

	m.TokenIssued("password")
	m.TokenIssued("password")
	m.PermissionWrite("update_roles", "database", errors.New("boom"))
	m.SweepFailure()

	require.InDelta(t, 2, testutil.ToFloat64(m.tokensIssued.WithLabelValues("password")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.permissionWrites.WithLabelValues("update_roles", "database", "error")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.sweepFailures), 0)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.TfaChallenge("delegated")

	h := m.Instrument("/v1/oauth2/token", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/oauth2/token", nil))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	require.True(t, strings.Contains(body, `warden_tfa_challenges_total{strategy="delegated"} 1`))
	require.True(t, strings.Contains(body, `warden_http_requests_total{method="POST",route="/v1/oauth2/token",status="400"} 1`))
}
