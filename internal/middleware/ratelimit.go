package middleware

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/species-catalog/internal/apperror"
	"github.com/sakif/species-catalog/internal/auth"
	"github.com/sakif/species-catalog/internal/metrics"
)

// Limiter is the subset of ratelimit.FixedWindowLimiter the middleware needs.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	RetryAfter() time.Duration
}

// RejectFunc writes the response for a request over quota. The JSON API
// answers 429; the catalog UI shows an error toast instead.
type RejectFunc func(w http.ResponseWriter, r *http.Request, err error)

// RateLimit caps mutating requests per signed-in user. Anonymous requests
// are keyed by client IP (chi's RealIP has already rewritten RemoteAddr).
//
// A nil limiter disables the middleware, which is how the server runs
// without Redis. When Redis fails the limiter fails closed; the error is
// logged and the request rejected like any other over-quota request.
func RateLimit(limiter Limiter, m *metrics.Metrics, logger *slog.Logger, reject RejectFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := auth.UserIDFromContext(r.Context())
			if !ok {
				key = "ip:" + r.RemoteAddr
			}

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Error("rate limiter unavailable", slog.String("error", err.Error()))
			}
			if allowed {
				next.ServeHTTP(w, r)
				return
			}

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			m.RecordRateLimited(route)
			logger.Warn("mutation rate limited",
				slog.String("key", key),
				slog.String("route", route),
			)

			secs := int(math.Ceil(limiter.RetryAfter().Seconds()))
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			reject(w, r, apperror.RateLimited("too many changes, try again in "+strconv.Itoa(secs)+"s"))
		})
	}
}
