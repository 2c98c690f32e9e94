package auth_test

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/tollgate-dev/tollgate/internal/auth/app"
	"github.com/tollgate-dev/tollgate/pkg/authsdk"
	"github.com/tollgate-dev/tollgate/pkg/httpx"
)

/*
 * End-to-end tests run the whole service in-process against a real Postgres
 * store and a real Redis principal cache, both started with testcontainers.
 * They are skipped with -short or when no Docker daemon is reachable.
 */

const (
	adminUsername = "admin"
	adminPassword = "Admin123!"

	pgUser     = "tollgate"
	pgPassword = "tollgate"
	pgDatabase = "tollgate"
)

// relaxedLimits keep rapid test traffic clear of the production limits.
var relaxedLimits = httpx.RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000}

// startContainer runs req and returns host:port of its first exposed port.
func startContainer(t *testing.T, req testcontainers.ContainerRequest) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	return endpoint
}

func startPostgres(t *testing.T) string {
	t.Helper()

	addr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     pgUser,
			"POSTGRES_PASSWORD": pgPassword,
			"POSTGRES_DB":       pgDatabase,
		},
		// The server restarts once after initdb.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	})
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", pgUser, pgPassword, addr, pgDatabase)
}

func startRedis(t *testing.T) string {
	t.Helper()

	return startContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForLog("Ready to accept connections").
			WithStartupTimeout(30 * time.Second),
	})
}

// setupService starts Postgres and Redis, boots the service against them and
// serves it over httptest. limits applies to both login and refresh.
func setupService(t *testing.T, limits httpx.RateLimitConfig) *authsdk.SDKClient {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping end-to-end test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	dsn := startPostgres(t)
	redisAddr := startRedis(t)

	dir := t.TempDir()
	cfg := app.Config{
		Auth: app.AuthConfig{
			JWT:               app.JWTConfig{Secret: "e2e-secret", ExpirationMS: 60_000},
			Issuer:            "tollgate-e2e",
			Database:          app.DatabaseConfig{Driver: app.DriverPostgres, URL: dsn},
			Redis:             app.RedisConfig{Addr: redisAddr},
			Admin:             app.AdminConfig{Username: adminUsername, Password: adminPassword},
			PepperFile:        filepath.Join(dir, "pepper"),
			PrincipalCacheTTL: 30 * time.Second,
		},
		Log:                 app.LogConfig{Level: "warn", Format: "json"},
		RateLimit:           app.RateLimitConfig{Login: limits, Refresh: limits},
		Env:                 "test",
		Port:                8080,
		ShutdownGracePeriod: time.Second,
	}
	require.NoError(t, cfg.Validate())

	svc, err := app.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := svc.Shutdown(); err != nil {
			t.Logf("failed to shut down service: %v", err)
		}
	})

	server := httptest.NewServer(svc.Handler())
	t.Cleanup(server.Close)

	return authsdk.NewSDKClient(server.URL)
}

// loginAdmin returns a session for the bootstrapped administrator.
func loginAdmin(t *testing.T, client *authsdk.SDKClient) *authsdk.Session {
	t.Helper()

	session, err := client.Login(t.Context(), adminUsername, adminPassword)
	require.NoError(t, err, "admin login should succeed")
	return session
}

// assertTokenResponse verifies a token response has all required fields.
func assertTokenResponse(t *testing.T, resp *authsdk.TokenResponse, username string) {
	t.Helper()
	require.NotNil(t, resp)
	require.Equal(t, username, resp.Username)
	require.True(t, resp.Authenticated)
	require.NotEmpty(t, resp.AccessToken, "Access token should not be empty")
	require.NotEmpty(t, resp.RefreshToken, "Refresh token should not be empty")
	require.True(t, resp.Expiration.After(resp.Created))
}

// assertStatus checks that err is an *authsdk.APIError with the given status.
func assertStatus(t *testing.T, err error, status int) *authsdk.APIError {
	t.Helper()
	require.Error(t, err)

	var apiErr *authsdk.APIError
	require.True(t, errors.As(err, &apiErr), "expected *authsdk.APIError, got %T: %v", err, err)
	require.Equal(t, status, apiErr.StatusCode, apiErr.Error())
	return apiErr
}
