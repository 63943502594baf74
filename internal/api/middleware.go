package api

import (
	"context"
	"log/slog"
	"net/http"
	"productservice/internal/models"
	"productservice/internal/ratelimit"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
)

// Caller is the identity resolved for a request.
type Caller struct {
	UserID string
	// Verified is set when UserID came from a bearer token signed with the
	// configured secret rather than from a forwarded header.
	Verified bool
}

type callerKey struct{}

// CallerFrom returns the identity resolved by the identity middleware.
func CallerFrom(ctx context.Context) Caller {
	c, _ := ctx.Value(callerKey{}).(Caller)
	return c
}

// identityMiddleware resolves the caller once per request and hands the
// request details to the rate limiter. A valid bearer token wins over the
// user header. Invalid tokens are ignored and the request continues
// anonymously, keyed by IP.
func identityMiddleware(security models.SecurityConfig) mux.MiddlewareFunc {
	secret := []byte(security.JWTSecret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var caller Caller
			if sub := subjectFromBearer(r, secret); sub != "" {
				caller = Caller{UserID: sub, Verified: true}
			} else if security.UserHeader != "" {
				caller.UserID = strings.TrimSpace(r.Header.Get(security.UserHeader))
			}

			ctx := context.WithValue(r.Context(), callerKey{}, caller)
			ctx = ratelimit.WithRequestInfo(ctx, ratelimit.RequestInfo{
				IP:     ratelimit.ClientIP(r),
				UserID: caller.UserID,
				Path:   r.URL.Path,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// subjectFromBearer returns the "sub" claim of an HS256 bearer token, or ""
// when there is no secret, no token or the token does not verify.
func subjectFromBearer(r *http.Request, secret []byte) string {
	if len(secret) == 0 {
		return ""
	}

	const prefix = "Bearer "
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, prefix) {
		return ""
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(authHeader[len(prefix):], claims,
		func(*jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !token.Valid {
		slog.Debug("Ignoring invalid bearer token", "path", r.URL.Path, "error", err)
		return ""
	}
	return claims.Subject
}

// requireVerifiedCaller protects admin routes. Without a configured secret
// there is nothing to verify against and the routes stay open, matching a
// deployment where the gateway already restricts /admin.
func requireVerifiedCaller(security models.SecurityConfig) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if security.JWTSecret == "" {
				next.ServeHTTP(w, r)
				return
			}

			caller := CallerFrom(r.Context())
			if !caller.Verified {
				slog.Warn("Rejected unauthenticated admin request",
					"path", r.URL.Path,
					"remote_addr", ratelimit.ClientIP(r))
				writeJSON(w, http.StatusUnauthorized,
					models.NewErrorResponse("Authorization required", models.ErrorCodeUnauthorized))
				return
			}

			slog.Info("Admin request", "path", r.URL.Path, "user_id", caller.UserID)
			next.ServeHTTP(w, r)
		})
	}
}
