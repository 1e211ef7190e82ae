package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/partner-chat/internal/api/response"
	"github.com/Rrens/partner-chat/internal/domain"
	"github.com/Rrens/partner-chat/internal/repository/redis"
	"github.com/Rrens/partner-chat/internal/security"
)

type contextKey string

const IdentityKey contextKey = "identity"

// AuthMiddleware handles JWT authentication
type AuthMiddleware struct {
	jwtManager *security.JWTManager
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtManager *security.JWTManager) *AuthMiddleware {
	return &AuthMiddleware{jwtManager: jwtManager}
}

// Authenticate validates the bearer token and stores the partner identity
// in the request context. EventSource clients cannot set headers, so the
// token is also accepted from the access_token query parameter.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			response.Unauthorized(w, "missing authorization header")
			return
		}

		claims, err := m.jwtManager.ValidateToken(token)
		if err != nil {
			response.Unauthorized(w, "invalid or expired token: "+err.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), claims.Identity())))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		token := r.URL.Query().Get("access_token")
		return token, token != ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// WithIdentity stores identity in ctx
func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// GetIdentity gets the partner identity from context
func GetIdentity(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(IdentityKey).(domain.Identity)
	return identity, ok
}

// Limiter decides whether a caller may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (redis.Decision, error)
}

// RateLimitMiddleware handles rate limiting
type RateLimitMiddleware struct {
	limiter Limiter
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware(limiter Limiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter}
}

// Limit applies rate limiting per partner uuid
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := GetIdentity(r.Context())
		if !ok {
			response.Unauthorized(w, "unauthorized")
			return
		}

		decision, err := m.limiter.Allow(r.Context(), identity.UUID)
		if err != nil {
			// fail open, the limiter is an optional dependency
			log.Warn().Err(err).Str("uuid", identity.UUID).Msg("rate limit check failed")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			retryAfter := int(math.Ceil(time.Until(decision.ResetAt).Seconds()))
			response.TooManyRequests(w, retryAfter, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}
