package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/redis/go-redis/v9"
	httpapi "github.com/tollgate-dev/tollgate/internal/auth/http"
	"github.com/tollgate-dev/tollgate/internal/auth/metrics"
	"github.com/tollgate-dev/tollgate/internal/auth/service"
	"github.com/tollgate-dev/tollgate/internal/auth/store"
	"github.com/tollgate-dev/tollgate/internal/auth/store/cached"
	"github.com/tollgate-dev/tollgate/internal/auth/store/drivers/postgres"
	"github.com/tollgate-dev/tollgate/internal/auth/store/drivers/sqlite"
	"github.com/tollgate-dev/tollgate/pkg/cryptox"
	"github.com/tollgate-dev/tollgate/pkg/httpx"
	"github.com/tollgate-dev/tollgate/pkg/jwtx"
	"github.com/tollgate-dev/tollgate/pkg/slogx"
)

// BuildVersion is overridden at build time with -ldflags "-X ...".
var BuildVersion = "v0.1.0"

// startupAttempts bounds the connectivity retries for the store and cache.
const startupAttempts = 5

// Application encapsulates the auth service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db      store.Store
	primary store.Store   // db without the cache; holds password hashes
	cache   *cached.Store // nil without redis
	metrics *metrics.Metrics

	tokenService     *service.TokenService
	authService      *service.AuthService
	userService      *service.UserService
	bootstrapService *service.BootstrapService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(ctx context.Context, cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "tollgate",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.Log.Level,
			Format:  cfg.Log.Format,
		}),
		metrics: metrics.NewWithRuntime(),
	}

	if cfg.GeneratedSecret {
		app.logger.Warn("jwt_secret_generated",
			"reason", "AUTH_JWT_SECRET is empty in dev; tokens will not survive a restart")
	}

	cryptox.SetPepperPath(cfg.Auth.PepperFile)

	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := app.initCache(ctx); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initServices(); err != nil {
		_ = app.closeStores()
		return nil, err
	}
	if err := app.bootstrap(ctx); err != nil {
		_ = app.closeStores()
		return nil, err
	}
	if err := app.initHTTP(); err != nil {
		_ = app.closeStores()
		return nil, err
	}

	return app, nil
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts
// down gracefully.
func (app *Application) Run(ctx context.Context) error {
	app.logger.Info("tollgate starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = app.closeStores()
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		app.logger.Info("shutdown signal received")
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains in-flight requests within the grace period, then closes
// the stores.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down tollgate...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.closeStores(); err != nil {
		app.logger.Error("error closing stores", "error", err)
		return err
	}

	app.logger.Info("tollgate stopped")
	return nil
}

// Handler exposes the routed handler, mainly for tests.
func (app *Application) Handler() http.Handler { return app.router }

// closeStores closes the cache, which also closes the store it wraps.
func (app *Application) closeStores() error {
	if app.cache != nil {
		return app.cache.Close()
	}
	return app.db.Close()
}

// retryStartup retries fn with exponential back-off while a dependency
// comes up.
func (app *Application) retryStartup(ctx context.Context, what string, fn func(context.Context) error) error {
	attempt := 0
	return retry.New(
		retry.Context(ctx),
		retry.Attempts(startupAttempts),
		retry.DelayType(retry.BackOffDelay),
	).Do(func() error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		err := fn(pingCtx)
		if err != nil {
			app.logger.Warn("startup_dependency_unavailable", "dependency", what, "attempt", attempt, "error", err)
		}
		return err
	})
}

// initDatabase opens the configured store, waits for it and applies
// migrations.
func (app *Application) initDatabase(ctx context.Context) error {
	var (
		db  store.Store
		err error
	)

	switch app.cfg.Auth.Database.Driver {
	case DriverPostgres:
		db, err = postgres.NewStore(app.cfg.Auth.Database.URL)
	default:
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.Auth.Database.File)
		db, err = sqlite.NewStore(dsn)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.retryStartup(ctx, "database", db.Ping); err != nil {
		_ = db.Close()
		return fmt.Errorf("database unreachable: %w", err)
	}

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.db = db
	app.primary = db
	app.logger.Info("database ready", "driver", app.cfg.Auth.Database.Driver)
	return nil
}

// initCache wraps the store with the redis principal cache when configured.
func (app *Application) initCache(ctx context.Context) error {
	rc := app.cfg.Auth.Redis
	if rc.Addr == "" {
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})

	ping := func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	if err := app.retryStartup(ctx, "redis", ping); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("redis unreachable: %w", err)
	}

	app.cache = cached.Wrap(app.db, rdb, app.cfg.Auth.PrincipalCacheTTL, app.logger)
	app.db = app.cache
	app.logger.Info("principal cache enabled", "addr", rc.Addr, "ttl", app.cfg.Auth.PrincipalCacheTTL)
	return nil
}

func (app *Application) initServices() error {
	codec, err := jwtx.NewCodec(app.cfg.Auth.JWT.Secret)
	if err != nil {
		return fmt.Errorf("failed to initialize token codec: %w", err)
	}

	principals := app.db.Principals()

	app.tokenService = &service.TokenService{
		Codec:      codec,
		Principals: principals,
		AccessTTL:  app.cfg.Auth.JWT.AccessTTL(),
		Issuer:     app.cfg.Auth.Issuer,
	}
	app.authService = &service.AuthService{
		Authenticator: &service.PasswordAuthenticator{Store: app.primary},
		Principals:    principals,
		Tokens:        app.tokenService,
		Metrics:       app.metrics,
	}
	app.userService = &service.UserService{Store: app.db}
	app.bootstrapService = &service.BootstrapService{Users: app.userService}
	return nil
}

func (app *Application) bootstrap(ctx context.Context) error {
	ctx = slogx.WithContext(ctx, app.logger)

	admin := app.cfg.Auth.Admin
	created, generated, err := app.bootstrapService.EnsureAdmin(ctx, admin.Username, admin.Password)
	if err != nil {
		return fmt.Errorf("failed to bootstrap admin: %w", err)
	}
	if created && generated != "" {
		// Shown once; the store keeps only the hash.
		app.logger.Warn("bootstrap_admin_password", "username", admin.Username, "password", generated)
	}
	return nil
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() error {
	proxies, err := httpx.ParseTrustedProxies(app.cfg.RateLimit.TrustedProxies)
	if err != nil {
		return fmt.Errorf("invalid trusted proxies: %w", err)
	}

	router := httpapi.NewRouter(BuildVersion, app.db, app.metrics, app.logger)

	router.TokenService = app.tokenService
	router.AuthService = app.authService
	router.UserService = app.userService
	router.LoginLimit = app.cfg.RateLimit.Login
	router.RefreshLimit = app.cfg.RateLimit.Refresh
	router.UserLimit = app.cfg.RateLimit.Users
	router.TrustedProxies = proxies
	if app.cache != nil {
		router.Cache = app.cache
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}

func generateSecret() (string, error) {
	return cryptox.GenerateToken(cryptox.TokenSize256)
}
