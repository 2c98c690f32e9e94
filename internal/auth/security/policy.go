package security

import (
	"net/http"
	"strings"

	"github.com/tollgate-dev/tollgate/internal/auth/domain"
	"github.com/tollgate-dev/tollgate/internal/auth/metrics"
	"github.com/tollgate-dev/tollgate/pkg/httpx"
	"github.com/tollgate-dev/tollgate/pkg/slogx"
)

type accessKind int

const (
	accessAuthenticated accessKind = iota
	accessPermitAll
	accessAuthority
)

// Access is what a route requires of the caller.
type Access struct {
	kind      accessKind
	authority string
}

var (
	PermitAll     = Access{kind: accessPermitAll}
	Authenticated = Access{kind: accessAuthenticated}
)

// HasAuthority requires an authenticated principal holding authority.
func HasAuthority(authority string) Access {
	return Access{kind: accessAuthority, authority: authority}
}

func (a Access) String() string {
	switch a.kind {
	case accessPermitAll:
		return "permitAll"
	case accessAuthority:
		return "hasAuthority(" + a.authority + ")"
	default:
		return "authenticated"
	}
}

// Rule applies Access to requests matching Method and Path. An empty Method
// matches any method. A Path ending in "/" matches every path below it, like
// http.ServeMux; otherwise the match is exact.
type Rule struct {
	Method string
	Path   string
	Access Access
}

func (r Rule) matches(req *http.Request) bool {
	if r.Method != "" && r.Method != req.Method {
		return false
	}
	if strings.HasSuffix(r.Path, "/") {
		return strings.HasPrefix(req.URL.Path, r.Path)
	}
	return req.URL.Path == r.Path
}

// Policy is an ordered rule table. The first matching rule wins and requests
// matching none fall back to Default.
type Policy struct {
	Rules   []Rule
	Default Access
}

// DefaultPolicy is the route table of the service.
func DefaultPolicy() Policy {
	return Policy{
		Rules: []Rule{
			{Method: http.MethodPost, Path: "/auth/login", Access: PermitAll},
			{Method: http.MethodPut, Path: "/auth/refresh/", Access: PermitAll},
			{Path: "/swagger/", Access: PermitAll},
			{Method: http.MethodGet, Path: "/livez", Access: PermitAll},
			{Method: http.MethodGet, Path: "/readyz", Access: PermitAll},
			{Method: http.MethodGet, Path: "/metrics", Access: PermitAll},
			{Method: http.MethodPost, Path: "/users", Access: HasAuthority(domain.AuthorityAdmin)},
		},
		Default: Authenticated,
	}
}

// Decision is the outcome of evaluating a Policy.
type Decision int

const (
	Permit Decision = iota
	Unauthenticated
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Permit:
		return "permit"
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Access returns the requirement that applies to req.
func (p Policy) Access(req *http.Request) Access {
	for _, rule := range p.Rules {
		if rule.matches(req) {
			return rule.Access
		}
	}
	return p.Default
}

// Decide evaluates req against the policy. Authorities come from the stored
// principal, never from the token's role claim.
func (p Policy) Decide(req *http.Request) Decision {
	access := p.Access(req)
	if access.kind == accessPermitAll {
		return Permit
	}

	actx, ok := FromContext(req.Context())
	if !ok {
		return Unauthenticated
	}
	if access.kind == accessAuthority && !actx.HasAuthority(access.authority) {
		return Forbidden
	}
	return Permit
}

// Authorize enforces p, answering with the 401 or 403 responder when the
// request may not proceed. m may be nil.
func Authorize(p Policy, m *metrics.Metrics) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := p.Decide(r)
			if m != nil {
				m.AccessDecisions.WithLabelValues(d.String()).Inc()
			}

			switch d {
			case Permit:
				next.ServeHTTP(w, r)
			case Unauthenticated:
				slogx.FromContext(r.Context()).Debug("access_unauthenticated", "path", r.URL.Path)
				WriteUnauthorized(w, r)
			default:
				slogx.FromContext(r.Context()).Info("access_denied", "path", r.URL.Path, "requires", p.Access(r).String())
				WriteForbidden(w, r)
			}
		})
	}
}
