package security

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tollgate-dev/tollgate/internal/auth/domain"
	"github.com/tollgate-dev/tollgate/internal/auth/metrics"
	"github.com/tollgate-dev/tollgate/internal/auth/service"
	"github.com/tollgate-dev/tollgate/pkg/cryptox"
	"github.com/tollgate-dev/tollgate/pkg/httpx"
	"github.com/tollgate-dev/tollgate/pkg/jwtx"
	"github.com/tollgate-dev/tollgate/pkg/slogx"
)

// BearerAuthenticator turns a bearer token into an authenticated principal.
// *service.TokenService implements it.
type BearerAuthenticator interface {
	Authenticate(ctx context.Context, token string) (domain.AuthenticatedContext, error)
}

// Authenticate resolves the bearer token of each request and attaches the
// principal to the context. It never writes a response: requests without a
// valid token continue unauthenticated and Authorize decides what to do with
// them. m may be nil.
func Authenticate(a BearerAuthenticator, m *metrics.Metrics) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := service.ResolveBearer(r.Header)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			actx, err := a.Authenticate(ctx, token)
			result := verificationResult(err)
			if m != nil {
				m.TokenVerification.WithLabelValues(result).Inc()
			}

			if err != nil {
				l := slogx.FromContext(ctx)
				attrs := []any{
					slog.String("result", result),
					slog.String("token_fp", cryptox.FingerprintToken(token)),
				}
				if result == metrics.ResultError {
					l.Error("bearer_authentication_failed", append(attrs, slog.Any("error", err))...)
				} else {
					l.Debug("bearer_rejected", append(attrs, slog.Any("error", err))...)
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx = WithAuthentication(ctx, actx)
			ctx = httpx.WithSubject(ctx, actx.Principal.Username)
			ctx = slogx.With(ctx, "sub", actx.Principal.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func verificationResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, jwtx.ErrExpired):
		return metrics.ResultExpired
	case errors.Is(err, service.ErrInvalidToken):
		return metrics.ResultInvalid
	case errors.Is(err, service.ErrObjectNotFound):
		return metrics.ResultUnknownPrincipal
	case errors.Is(err, service.ErrPrincipalInactive):
		return metrics.ResultInactive
	default:
		return metrics.ResultError
	}
}
