package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/eventra/authserver/internal/ratelimit"
	"github.com/eventra/authserver/internal/token"
	"github.com/eventra/authserver/types"
	"go.uber.org/zap"
)

// AccessTokenVerifier validates bearer access tokens.
type AccessTokenVerifier interface {
	VerifyAccessToken(tokenString string) (*token.Claims, error)
}

// Limiter is the rate limiting backend used by RateLimit.
type Limiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Result, error)
}

// RequireAuth enforces a valid access token and injects its claims into
// the request context.
func RequireAuth(verifier AccessTokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, msgUnauthorized)
				return
			}

			claims, err := verifier.VerifyAccessToken(tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, msgInvalidToken)
				return
			}

			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// RequireRole rejects authenticated callers whose role is not listed.
// It must run after RequireAuth.
func RequireRole(roles ...types.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, msgUnauthorized)
				return
			}
			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, msgForbidden)
		})
	}
}

// RateLimit throttles requests per client IP. A nil limiter disables it;
// limiter failures let the request through.
func RateLimit(limiter Limiter, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := limiter.Allow(r.Context(), "ip:"+clientIP(r))
			if err != nil {
				logger.Warn("http rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			if !res.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
				writeError(w, http.StatusTooManyRequests, "Too many requests, try again in "+res.RetryAfter.String())
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			next.ServeHTTP(w, r)
		})
	}
}
