package api

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	gwerrors "github.com/polydev-ai/polygate/pkg/errors"
)

type userKey struct{}

// anonymousUser identifies unauthenticated callers when auth is disabled.
const anonymousUser = "anonymous"

// UserFromContext returns the authenticated user id, or "anonymous".
func UserFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userKey{}).(string); ok && id != "" {
		return id
	}
	return anonymousUser
}

// ContextWithUser attaches a user id to the context.
func ContextWithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// AuthConfig controls the JWT middleware.
type AuthConfig struct {
	Enabled bool
	Secret  string
	Issuer  string
}

// AuthMiddleware validates bearer tokens and stores the subject claim as
// the request's user id. When disabled, an X-User-ID header is trusted so
// local deployments can still attribute usage.
func (h *Handler) AuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled {
				if id := r.Header.Get("X-User-ID"); id != "" {
					r = r.WithContext(ContextWithUser(r.Context(), id))
				}
				next.ServeHTTP(w, r)
				return
			}

			raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if raw == "" || raw == r.Header.Get("Authorization") {
				h.writeError(w, gwerrors.NewAuthenticationError("", "", "missing bearer token"))
				return
			}

			claims := jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(cfg.Secret), nil
			})
			if err != nil || !token.Valid {
				h.writeError(w, gwerrors.NewAuthenticationError("", "", "invalid token"))
				return
			}
			if cfg.Issuer != "" && claims.Issuer != cfg.Issuer {
				h.writeError(w, gwerrors.NewAuthenticationError("", "", "unexpected token issuer"))
				return
			}
			if claims.Subject == "" {
				h.writeError(w, gwerrors.NewAuthenticationError("", "", "token has no subject"))
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), claims.Subject)))
		})
	}
}

// RateLimiter bounds inbound requests per user with token buckets.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewRateLimiter creates a per-user limiter allowing requestsPerMinute
// sustained with the given burst.
func NewRateLimiter(requestsPerMinute, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:    burst,
	}
}

func (rl *RateLimiter) limiterFor(user string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.limiters[user]
	if !ok {
		l = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[user] = l
	}
	return l
}

// Middleware rejects requests beyond the per-user budget with 429.
func (h *Handler) RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rl != nil && !rl.limiterFor(UserFromContext(r.Context())).Allow() {
				h.writeError(w, gwerrors.NewRateLimitError("", "", "request rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
