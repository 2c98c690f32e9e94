// Package metrics holds the Prometheus instruments for the auth service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tollgate-dev/tollgate/pkg/slogx"
)

// Outcome label values.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid"
	OutcomeExpired  = "expired"
	OutcomeError    = "error"
)

// Token verification result label values.
const (
	ResultOK               = "ok"
	ResultExpired          = "expired"
	ResultInvalid          = "invalid"
	ResultUnknownPrincipal = "unknown_principal"
	ResultInactive         = "inactive"
	ResultError            = "error"
)

type Metrics struct {
	LoginTotal        *prometheus.CounterVec
	RefreshTotal      *prometheus.CounterVec
	TokenVerification *prometheus.CounterVec
	AccessDecisions   *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers the instruments on reg. A nil reg gets a private registry,
// which keeps tests isolated.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		LoginTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tollgate_login_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),

		RefreshTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tollgate_refresh_total",
			Help: "Token refreshes by outcome.",
		}, []string{"outcome"}),

		TokenVerification: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tollgate_token_verification_total",
			Help: "Bearer token verifications by result.",
		}, []string{"result"}),

		AccessDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tollgate_access_decisions_total",
			Help: "Access decisions by outcome.",
		}, []string{"outcome"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tollgate_http_request_duration_seconds",
			Help:    "HTTP request latencies.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "status"}),

		gatherer: reg,
	}
}

// NewWithRuntime is New plus the Go runtime and process collectors, for the
// production registry.
func NewWithRuntime() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return New(reg)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// HTTPMiddleware observes request duration by method and status.
func (m *Metrics) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := slogx.NewStatusRecorder(w)

			next.ServeHTTP(rw, r)

			m.RequestDuration.
				WithLabelValues(r.Method, strconv.Itoa(rw.Status())).
				Observe(time.Since(start).Seconds())
		})
	}
}
