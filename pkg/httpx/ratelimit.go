package httpx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tollgate-dev/tollgate/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines a token bucket: RequestsPerWindow refill over Window,
// with up to Burst requests admitted at once.
type RateLimitConfig struct {
	RequestsPerWindow int           `mapstructure:"requests"`
	Window            time.Duration `mapstructure:"window"`
	Burst             int           `mapstructure:"burst"`
}

// Default profiles. Both can be overridden through configuration.
var (
	// StrictLimit guards credential endpoints against brute forcing.
	StrictLimit = RateLimitConfig{RequestsPerWindow: 5, Window: time.Minute, Burst: 5}

	// ModerateLimit guards token refresh.
	ModerateLimit = RateLimitConfig{RequestsPerWindow: 20, Window: time.Minute, Burst: 20}
)

// Enabled reports whether the config describes a usable limit.
func (c RateLimitConfig) Enabled() bool {
	return c.RequestsPerWindow > 0 && c.Window > 0 && c.Burst > 0
}

// KeyExtractor groups requests for rate limiting. An empty key bypasses the
// limiter.
type KeyExtractor func(*http.Request) string

// IPKeyExtractor returns the peer address from RemoteAddr. Forwarded headers
// are ignored; see TrustedProxies.
func IPKeyExtractor(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// TrustedProxies lists the peers whose X-Forwarded-For and X-Real-IP headers
// are believed. The zero value trusts no one.
type TrustedProxies []netip.Prefix

// ParseTrustedProxies accepts CIDR prefixes and bare addresses.
func ParseTrustedProxies(entries []string) (TrustedProxies, error) {
	var out TrustedProxies
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
		}
		a = a.Unmap()
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}

func (p TrustedProxies) trusts(ip string) bool {
	a, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	a = a.Unmap()
	for _, prefix := range p {
		if prefix.Contains(a) {
			return true
		}
	}
	return false
}

// ClientIP is a KeyExtractor. Forwarded headers are read only when the peer
// is trusted. X-Forwarded-For is walked from the right and the first hop that
// is not itself a trusted proxy wins.
func (p TrustedProxies) ClientIP(r *http.Request) string {
	peer := IPKeyExtractor(r)
	if !p.trusts(peer) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if i == 0 || !p.trusts(hop) {
				return hop
			}
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return peer
}

// SubjectKeyExtractor returns the authenticated subject, if any.
func SubjectKeyExtractor(r *http.Request) string {
	return SubjectFromContext(r.Context())
}

// PathValueKeyExtractor returns the named wildcard of the matched route.
func PathValueKeyExtractor(name string) KeyExtractor {
	return func(r *http.Request) string {
		return r.PathValue(name)
	}
}

// JSONFieldKeyExtractor returns a top-level string field of a JSON body. The
// body is buffered and restored so the handler can still read it.
func JSONFieldKeyExtractor(field string) KeyExtractor {
	return func(r *http.Request) string {
		if r.Body == nil {
			return ""
		}

		raw, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(raw))
		if err != nil {
			return ""
		}

		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return ""
		}
		v, _ := m[field].(string)
		return strings.ToLower(strings.TrimSpace(v))
	}
}

// CompositeKeyExtractor joins the non-empty keys of extractors with sep.
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(extractors))
		for _, extract := range extractors {
			if key := extract(r); key != "" {
				parts = append(parts, key)
			}
		}
		return strings.Join(parts, sep)
	}
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rate     rate.Limit
	burst    int
	idle     time.Duration
	swept    time.Time
}

func (rl *rateLimiter) get(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.swept) > rl.idle {
		for k, e := range rl.limiters {
			if now.Sub(e.lastSeen) > rl.idle {
				delete(rl.limiters, k)
			}
		}
		rl.swept = now
	}

	e, ok := rl.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

// RateLimitMiddleware limits requests per key. Rejected requests get 429 with
// Retry-After.
func RateLimitMiddleware(config RateLimitConfig, keyExtractor KeyExtractor) Middleware {
	if !config.Enabled() {
		return func(next http.Handler) http.Handler { return next }
	}

	rl := &rateLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     rate.Limit(float64(config.RequestsPerWindow) / config.Window.Seconds()),
		burst:    config.Burst,
		idle:     max(config.Window, 5*time.Minute),
		swept:    time.Now(),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := slogx.FromContext(r.Context())

			key := keyExtractor(r)
			if key == "" {
				log.Warn("rate_limit_no_key")
				next.ServeHTTP(w, r)
				return
			}

			now := time.Now()
			limiter := rl.get(key, now)
			if limiter.AllowN(now, 1) {
				next.ServeHTTP(w, r)
				return
			}

			res := limiter.ReserveN(now, 1)
			retryAfter := max(int(res.DelayFrom(now).Seconds()), 1)
			res.CancelAt(now)

			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Window", config.Window.String())

			log.Warn("rate_limit_exceeded", "key", key, "retry_after", retryAfter)

			WriteJSON(w, http.StatusTooManyRequests, map[string]any{
				"timestamp": now.UnixMilli(),
				"status":    http.StatusTooManyRequests,
				"error":     "Too Many Requests",
				"message":   "Too many requests. Please try again later.",
				"path":      r.URL.Path,
			})
		})
	}
}

// RateLimitByIP limits by client IP as returned by ip.
func RateLimitByIP(config RateLimitConfig, ip KeyExtractor) Middleware {
	return RateLimitMiddleware(config, ip)
}

// RateLimitByIPAndJSONField limits by client IP plus a JSON body field, e.g.
// the username of a login attempt.
func RateLimitByIPAndJSONField(config RateLimitConfig, ip KeyExtractor, field string) Middleware {
	return RateLimitMiddleware(config, CompositeKeyExtractor(":", ip, JSONFieldKeyExtractor(field)))
}

// RateLimitByIPAndPathValue limits by client IP plus a route wildcard.
func RateLimitByIPAndPathValue(config RateLimitConfig, ip KeyExtractor, name string) Middleware {
	return RateLimitMiddleware(config, CompositeKeyExtractor(":", ip, PathValueKeyExtractor(name)))
}

// RateLimitBySubject limits by authenticated subject. Anonymous requests pass
// through, so it belongs behind the authenticator.
func RateLimitBySubject(config RateLimitConfig) Middleware {
	return RateLimitMiddleware(config, SubjectKeyExtractor)
}
