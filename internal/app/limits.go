package app

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"

	"github.com/noah-isme/backend-freight/internal/common"
)

// apiRateLimit enforces lim per client IP. Store failures let the request through.
func apiRateLimit(lim *limiter.Limiter, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "api:" + common.ClientIP(r)
			lctx, err := lim.Get(r.Context(), key)
			if err != nil {
				log.Warn().Err(err).Msg("api rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}

			headers := w.Header()
			headers.Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
			headers.Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
			headers.Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

			if lctx.Reached {
				common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests, try again later", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
