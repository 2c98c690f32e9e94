package security_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tollgate-dev/tollgate/internal/auth/domain"
	"github.com/tollgate-dev/tollgate/internal/auth/metrics"
	"github.com/tollgate-dev/tollgate/internal/auth/security"
	"github.com/tollgate-dev/tollgate/internal/auth/service"
	"github.com/tollgate-dev/tollgate/pkg/httpx"
	"github.com/tollgate-dev/tollgate/pkg/jwtx"
)

// fakeAuthenticator maps tokens to principals or errors.
type fakeAuthenticator map[string]any

func (f fakeAuthenticator) Authenticate(_ context.Context, token string) (domain.AuthenticatedContext, error) {
	switch v := f[token].(type) {
	case domain.Principal:
		return domain.AuthenticatedContext{Principal: v}, nil
	case error:
		return domain.AuthenticatedContext{}, v
	default:
		return domain.AuthenticatedContext{}, fmt.Errorf("%w: unknown token", service.ErrInvalidToken)
	}
}

func principal(username string, authorities ...string) domain.Principal {
	return domain.Principal{Username: username, Authorities: authorities, Enabled: true,
		AccountNonLocked: true, AccountNonExpired: true, CredentialsNonExpired: true}
}

var tokens = fakeAuthenticator{
	"admin":   principal("admin", domain.AuthorityAdmin),
	"user":    principal("user", "USER"),
	"expired": jwtx.ErrExpired,
	"ghost":   &service.NotFoundError{Username: "ghost"},
}

func newHandler(m *metrics.Metrics) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, authed := security.FromContext(r.Context())
		body := map[string]any{"authenticated": authed, "subject": httpx.SubjectFromContext(r.Context())}
		if authed {
			body["username"] = a.Principal.Username
		}
		httpx.WriteJSON(w, http.StatusOK, body)
	})
	return httpx.Chain(ok,
		security.Authenticate(tokens, m),
		security.Authorize(security.DefaultPolicy(), m),
	)
}

func do(t *testing.T, h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAccessDecisions(t *testing.T) {
	t.Parallel()

	h := newHandler(nil)

	tests := []struct {
		name         string
		method, path string
		token        string
		want         int
	}{
		{name: "login is public", method: http.MethodPost, path: "/auth/login", want: http.StatusOK},
		{name: "login ignores bad token", method: http.MethodPost, path: "/auth/login", token: "expired", want: http.StatusOK},
		{name: "refresh is public", method: http.MethodPut, path: "/auth/refresh/user", want: http.StatusOK},
		{name: "refresh needs PUT", method: http.MethodGet, path: "/auth/refresh/user", want: http.StatusUnauthorized},
		{name: "swagger is public", method: http.MethodGet, path: "/swagger/index.html", want: http.StatusOK},
		{name: "livez is public", method: http.MethodGet, path: "/livez", want: http.StatusOK},
		{name: "readyz is public", method: http.MethodGet, path: "/readyz", want: http.StatusOK},
		{name: "metrics is public", method: http.MethodGet, path: "/metrics", want: http.StatusOK},
		{name: "me without token", method: http.MethodGet, path: "/users/me", want: http.StatusUnauthorized},
		{name: "me with expired token", method: http.MethodGet, path: "/users/me", token: "expired", want: http.StatusUnauthorized},
		{name: "me with unknown subject", method: http.MethodGet, path: "/users/me", token: "ghost", want: http.StatusUnauthorized},
		{name: "me with garbage", method: http.MethodGet, path: "/users/me", token: "garbage", want: http.StatusUnauthorized},
		{name: "me with user token", method: http.MethodGet, path: "/users/me", token: "user", want: http.StatusOK},
		{name: "create user anonymous", method: http.MethodPost, path: "/users", want: http.StatusUnauthorized},
		{name: "create user as non-admin", method: http.MethodPost, path: "/users", token: "user", want: http.StatusForbidden},
		{name: "create user as admin", method: http.MethodPost, path: "/users", token: "admin", want: http.StatusOK},
		{name: "unknown route needs auth", method: http.MethodGet, path: "/anything", want: http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec := do(t, h, tc.method, tc.path, tc.token)
			require.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

func TestAuthenticateAttachesPrincipal(t *testing.T) {
	t.Parallel()

	rec := do(t, newHandler(nil), http.MethodGet, "/users/me", "user")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["authenticated"])
	assert.Equal(t, "user", body["username"])
	assert.Equal(t, "user", body["subject"])
}

func TestUnauthorizedEnvelope(t *testing.T) {
	t.Parallel()

	rec := do(t, newHandler(nil), http.MethodGet, "/users/me", "expired")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var body security.UnauthorizedBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusUnauthorized, body.Status)
	assert.Equal(t, "Unauthorized", body.Error)
	assert.Equal(t, "Username or Password invalid", body.Message)
	assert.Equal(t, "/users/me", body.Path)
	assert.Positive(t, body.Timestamp)
}

func TestForbiddenEnvelope(t *testing.T) {
	t.Parallel()

	rec := do(t, newHandler(nil), http.MethodPost, "/users", "user")
	require.Equal(t, http.StatusForbidden, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(http.StatusForbidden), body["status"])
	assert.Equal(t, "Forbidden", body["error"])
	assert.Equal(t, "Access denied", body["message"])
	assert.NotContains(t, body, "path")
	assert.Contains(t, body, "timestamp")
}

func TestAuthorityComesFromStoredPrincipal(t *testing.T) {
	t.Parallel()

	// The token claims ADMIN but the stored principal does not hold it.
	a := fakeAuthenticator{}
	a["forged"] = principal("user", "USER")
	stub := authFunc(func(ctx context.Context, token string) (domain.AuthenticatedContext, error) {
		actx, err := a.Authenticate(ctx, token)
		actx.TokenRoles = []string{domain.AuthorityAdmin}
		return actx, err
	})

	h := httpx.Chain(http.NotFoundHandler(),
		security.Authenticate(stub, nil),
		security.Authorize(security.DefaultPolicy(), nil),
	)
	rec := do(t, h, http.MethodPost, "/users", "forged")
	require.Equal(t, http.StatusForbidden, rec.Code)
}

type authFunc func(ctx context.Context, token string) (domain.AuthenticatedContext, error)

func (f authFunc) Authenticate(ctx context.Context, token string) (domain.AuthenticatedContext, error) {
	return f(ctx, token)
}

func TestSecurityMetrics(t *testing.T) {
	t.Parallel()

	m := metrics.New(nil)
	h := newHandler(m)

	do(t, h, http.MethodGet, "/users/me", "user")
	do(t, h, http.MethodGet, "/users/me", "expired")
	do(t, h, http.MethodGet, "/users/me", "ghost")
	do(t, h, http.MethodPost, "/users", "user")

	assert.InDelta(t, 2, testutil.ToFloat64(m.TokenVerification.WithLabelValues(metrics.ResultOK)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.TokenVerification.WithLabelValues(metrics.ResultExpired)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.TokenVerification.WithLabelValues(metrics.ResultUnknownPrincipal)), 0)

	assert.InDelta(t, 1, testutil.ToFloat64(m.AccessDecisions.WithLabelValues("permit")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.AccessDecisions.WithLabelValues("unauthenticated")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.AccessDecisions.WithLabelValues("forbidden")), 0)
}

func TestPolicyAccess(t *testing.T) {
	t.Parallel()

	p := security.DefaultPolicy()
	req := httptest.NewRequest(http.MethodPost, "/users", nil)
	assert.Equal(t, "hasAuthority(ADMIN)", p.Access(req).String())

	req = httptest.NewRequest(http.MethodGet, "/users/bob", nil)
	assert.Equal(t, "authenticated", p.Access(req).String())

	req = httptest.NewRequest(http.MethodPut, "/auth/refresh/bob", nil)
	assert.Equal(t, "permitAll", p.Access(req).String())
}
