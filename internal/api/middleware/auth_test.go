package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/partner-chat/internal/api/middleware"
	"github.com/Rrens/partner-chat/internal/domain"
	"github.com/Rrens/partner-chat/internal/repository/redis"
	"github.com/Rrens/partner-chat/internal/security"
)

type mockLimiter struct {
	mock.Mock
}

func (m *mockLimiter) Allow(ctx context.Context, key string) (redis.Decision, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(redis.Decision), args.Error(1)
}

var identity = domain.Identity{UUID: "u-1", HospitalID: "h-9"}

func echoIdentity(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := middleware.GetIdentity(r.Context())
		require.True(t, ok)
		assert.Equal(t, identity, got)
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthenticate(t *testing.T) {
	jwtManager := security.NewJWTManager("test-secret-key-with-32-chars!!", time.Hour)
	token, err := jwtManager.GenerateToken(identity)
	require.NoError(t, err)

	h := middleware.NewAuthMiddleware(jwtManager).Authenticate(echoIdentity(t))

	tests := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"bearer header", "Bearer " + token, "", http.StatusNoContent},
		{"lower case scheme", "bearer " + token, "", http.StatusNoContent},
		{"query parameter", "", "?access_token=" + token, http.StatusNoContent},
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, "", http.StatusUnauthorized},
		{"garbage token", "Bearer nope", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRateLimit(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	serve := func(l middleware.Limiter) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(middleware.WithIdentity(req.Context(), identity))
		rec := httptest.NewRecorder()
		middleware.NewRateLimitMiddleware(l).Limit(next).ServeHTTP(rec, req)
		return rec
	}

	t.Run("allowed", func(t *testing.T) {
		l := new(mockLimiter)
		l.On("Allow", mock.Anything, "u-1").Return(redis.Decision{Allowed: true, Limit: 70, Remaining: 69, ResetAt: time.Unix(1700000000, 0)}, nil)

		rec := serve(l)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "70", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "69", rec.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, "1700000000", rec.Header().Get("X-RateLimit-Reset"))
	})

	t.Run("exceeded", func(t *testing.T) {
		l := new(mockLimiter)
		l.On("Allow", mock.Anything, "u-1").Return(redis.Decision{
			Allowed: false,
			Limit:   70,
			ResetAt: time.Now().Add(20 * time.Second),
		}, nil)

		rec := serve(l)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
		assert.Contains(t, []string{"20", "19"}, rec.Header().Get("Retry-After"))
	})

	t.Run("limiter failure lets the request through", func(t *testing.T) {
		l := new(mockLimiter)
		l.On("Allow", mock.Anything, "u-1").Return(redis.Decision{}, errors.New("redis down"))

		assert.Equal(t, http.StatusNoContent, serve(l).Code)
	})
}
