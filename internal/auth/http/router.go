package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/tollgate-dev/tollgate/internal/auth/metrics"
	"github.com/tollgate-dev/tollgate/internal/auth/security"
	"github.com/tollgate-dev/tollgate/internal/auth/service"
	"github.com/tollgate-dev/tollgate/internal/auth/store"
	"github.com/tollgate-dev/tollgate/pkg/httpx"
	"github.com/tollgate-dev/tollgate/pkg/slogx"

	_ "github.com/tollgate-dev/tollgate/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux     *http.ServeMux
	handler http.Handler

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store
	metrics      *metrics.Metrics

	TokenService *service.TokenService
	AuthService  *service.AuthService
	UserService  *service.UserService

	// Cache is optional; nil when no redis is configured.
	Cache CachePinger

	// Policy defaults to security.DefaultPolicy.
	Policy *security.Policy

	LoginLimit   httpx.RateLimitConfig
	RefreshLimit httpx.RateLimitConfig
	UserLimit    httpx.RateLimitConfig // POST /users, per authenticated subject

	// TrustedProxies may set the client address through X-Forwarded-For.
	TrustedProxies httpx.TrustedProxies
}

func NewRouter(buildVersion string, st store.Store, m *metrics.Metrics, logger *slog.Logger) *Router {
	return &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		store:        st,
		metrics:      m,
		LoginLimit:   httpx.StrictLimit,
		RefreshLimit: httpx.ModerateLimit,
		UserLimit:    httpx.ModerateLimit,
	}
}

// ApplyRoutes registers the handlers and builds the middleware chain. The
// service fields must be set first.
func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerUsers()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())

	policy := security.DefaultPolicy()
	if r.Policy != nil {
		policy = *r.Policy
	}

	// Order matters: the authenticator must run before the access decision.
	r.handler = httpx.Chain(r.Mux,
		slogx.HTTPMiddleware(r.logger),
		r.metrics.HTTPMiddleware(),
		httpx.BaseURLMiddleware(),
		security.Authenticate(r.TokenService, r.metrics),
		security.Authorize(policy, r.metrics),
	)
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Tollgate Authentication Service API
//	@version		0.1.0
//	@description	Stateless JWT authentication. Log in with username and password to receive an HS256 signed access token and a refresh token.
//	@description	Send the access token as "Authorization: Bearer {token}" on every other request.
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	clientIP := r.TrustedProxies.ClientIP

	// POST /auth/login - strict rate limit by IP + username to slow brute force
	r.Mux.Handle("POST /auth/login",
		httpx.Chain(&LoginHandler{AuthService: r.AuthService},
			httpx.RateLimitByIPAndJSONField(r.LoginLimit, clientIP, "username"),
		),
	)

	// PUT /auth/refresh/{username} - moderate rate limit by IP + username
	r.Mux.Handle("PUT /auth/refresh/{username}",
		httpx.Chain(&RefreshHandler{AuthService: r.AuthService},
			httpx.RateLimitByIPAndPathValue(r.RefreshLimit, clientIP, "username"),
		),
	)
}

func (r *Router) registerUsers() {
	h := &UserHandler{UserService: r.UserService}

	// Access is enforced by the policy: POST needs ADMIN, reads need a token.
	// The subject is known by the time the mux runs.
	r.Mux.Handle("POST /users",
		httpx.Chain(http.HandlerFunc(h.Create),
			httpx.RateLimitBySubject(r.UserLimit),
		),
	)
	r.Mux.HandleFunc("GET /users/me", h.Me)
	r.Mux.HandleFunc("GET /users/{username}", h.Get)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.Cache))
	r.Mux.Handle("GET /metrics", r.metrics.Handler())
}
