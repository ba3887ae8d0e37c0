package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/whatnow/internal/ratelimit"
)

// DefaultAPILimit is the per-client limit on recommendation requests.
var DefaultAPILimit = ratelimit.Limit{Calls: 60, Window: time.Minute}

// KeyFunc extracts a rate limit key from an HTTP request.
type KeyFunc func(r *http.Request) string

// IPKeyFunc returns a KeyFunc that uses the client's IP address.
// X-Forwarded-For (first hop) and X-Real-IP are honored before RemoteAddr.
func IPKeyFunc() KeyFunc {
	return func(r *http.Request) string {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return "ip:" + strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return "ip:" + strings.TrimSpace(xri)
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return "ip:" + r.RemoteAddr
		}
		return "ip:" + host
	}
}

// RateLimiter rejects requests over limit with 429 and a Retry-After header.
// Allowed responses carry X-RateLimit-Limit and X-RateLimit-Remaining.
// m may be nil.
func RateLimiter(store ratelimit.Store, limit ratelimit.Limit, keyFunc KeyFunc, m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, remaining, retryAfter := store.Allow(r.Context(), keyFunc(r), limit)
			if m != nil {
				m.IncRateLimitRequests(r.URL.Path)
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.Calls))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !allowed {
				if m != nil {
					m.IncRateLimitBlocked(r.URL.Path)
				}
				SetErrorCode(r.Context(), "rate_limit_exceeded")

				secs := int((retryAfter + time.Second - 1) / time.Second)
				if secs <= 0 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(retryAfter).Unix(), 10))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":{"code":"rate_limit_exceeded","message":"Too many requests, please retry later"}}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
