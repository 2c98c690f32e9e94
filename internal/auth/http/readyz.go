package http

import (
	"context"
	"net/http"
	"time"

	"github.com/tollgate-dev/tollgate/internal/auth/store"
	"github.com/tollgate-dev/tollgate/pkg/authsdk"
	"github.com/tollgate-dev/tollgate/pkg/httpx"
)

// CachePinger is implemented by the redis backed principal cache.
type CachePinger interface {
	PingCache(ctx context.Context) error
}

const readyzTimeout = 2 * time.Second

// ReadyzHandler godoc
//
//	@Summary		Readiness check
//	@Description	Pings the principal store and, when configured, the principal cache.
//	@Description	The cache is optional: a failing cache reports "degraded" but stays 200 because lookups fall through to the store.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	authsdk.HealthResponse	"store unavailable"
//	@Router			/readyz [get].
func ReadyzHandler(startTime time.Time, version string, st store.Store, cache CachePinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyzTimeout)
		defer cancel()

		checks := &authsdk.HealthChecks{Database: "ok"}
		status := "ok"
		code := http.StatusOK

		if err := st.Ping(ctx); err != nil {
			checks.Database = "error: " + err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		if cache != nil {
			checks.Cache = "ok"
			if err := cache.PingCache(ctx); err != nil {
				checks.Cache = "error: " + err.Error()
				status = "degraded"
			}
		}

		httpx.WriteJSON(w, code, authsdk.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Truncate(time.Second).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
