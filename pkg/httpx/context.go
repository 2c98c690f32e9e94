package httpx

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const (
	ctxKeyBaseURL ctxKey = "base_url"
	ctxKeySubject ctxKey = "subject"
)

// BaseURL returns scheme://host[:port] of the server as the client addressed
// it. X-Forwarded-Proto and X-Forwarded-Host are honoured when present.
func BaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(p, ",")[0]))
	}

	host := r.Host
	if h := r.Header.Get("X-Forwarded-Host"); h != "" {
		host = strings.TrimSpace(strings.Split(h, ",")[0])
	}
	if host == "" {
		host = "localhost"
	}

	return scheme + "://" + host
}

// BaseURLMiddleware records BaseURL(r) on the request context.
func BaseURLMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithBaseURL(r.Context(), BaseURL(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithBaseURL(ctx context.Context, baseURL string) context.Context {
	return context.WithValue(ctx, ctxKeyBaseURL, baseURL)
}

// BaseURLFromContext returns the base URL recorded by BaseURLMiddleware.
func BaseURLFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyBaseURL).(string)
	return v, ok && v != ""
}

// WithSubject records the authenticated subject for downstream consumers such
// as per-user rate limiting.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, ctxKeySubject, subject)
}

func SubjectFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeySubject).(string)
	return v
}
