package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCountersAreIsolatedPerRegistry(t *testing.T) {
	t.Parallel()

	a := New(nil)
	b := New(nil)

	a.LoginTotal.WithLabelValues(OutcomeSuccess).Inc()
	require.InDelta(t, 1, testutil.ToFloat64(a.LoginTotal.WithLabelValues(OutcomeSuccess)), 0)
	require.InDelta(t, 0, testutil.ToFloat64(b.LoginTotal.WithLabelValues(OutcomeSuccess)), 0)
}

func TestHandlerExposesMetrics(t *testing.T) {
	t.Parallel()

	m := New(nil)
	m.AccessDecisions.WithLabelValues("forbidden").Inc()

	h := m.HTTPMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `tollgate_access_decisions_total{outcome="forbidden"} 1`)
	require.Contains(t, body, `tollgate_http_request_duration_seconds_count{method="GET",status="204"} 1`)
}
