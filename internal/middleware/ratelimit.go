package middleware

import (
	"fmt"
	"net"
	"net/http"

	"github.com/netrixlabs/keygate/internal/ratelimit"
)

// RateLimit throttles a route per source IP using the redis limiter.
// The config func is re-read per request so hot-reloaded limits apply
// without restart.
func RateLimit(limiter *ratelimit.Limiter, name string, config func() ratelimit.LimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cfg := config()
			if cfg.Rate <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}

			key := fmt.Sprintf("%s:%s", name, limiter.HashIP(ip))
			decision, err := limiter.CheckRateLimit(r.Context(), key, cfg)
			if err != nil {
				// Redis down: let the request through, the store-facing
				// handler will surface the real failure.
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", decision.Remaining))

			if !decision.Allowed {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", decision.RetryAfter))
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
