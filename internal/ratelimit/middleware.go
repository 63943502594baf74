package ratelimit

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"productservice/internal/models"
)

// Middleware guards one route with the policy registered for operation. It
// reads request details set upstream by WithRequestInfo and derives them from
// the request when absent. Handlers below run with an admitted context, so a
// Guard further down does not charge the bucket again.
func Middleware(i *Interceptor, operation string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if _, ok := RequestInfoFrom(ctx); !ok {
				ctx = WithRequestInfo(ctx, RequestInfo{
					IP:   ClientIP(r),
					Path: r.URL.Path,
				})
			}

			ctx, decision, err := i.Check(ctx, operation)
			if err != nil {
				var exceeded *ExceededError
				if errors.As(err, &exceeded) {
					WriteRejection(w, exceeded)
					return
				}
				slog.Error("Rate limit check failed", "operation", operation, "error", err)
				w.WriteHeader(http.StatusInternalServerError)
				return
			}

			if decision.Remaining >= 0 {
				w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WriteRejection writes the 429 response for a denied request.
func WriteRejection(w http.ResponseWriter, e *ExceededError) {
	retryAfter := e.RetryAfterSeconds()

	w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	resp := models.NewRateLimitErrorResponse(e.Message, e.BucketKey, retryAfter)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode rate limit response", "error", err)
	}
}
