package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/partner-chat/internal/api/handler"
	customMiddleware "github.com/Rrens/partner-chat/internal/api/middleware"
	"github.com/Rrens/partner-chat/internal/config"
	"github.com/Rrens/partner-chat/internal/notify"
	"github.com/Rrens/partner-chat/internal/repository/redis"
	"github.com/Rrens/partner-chat/internal/security"
	"github.com/Rrens/partner-chat/internal/service"
)

const defaultMiddlewareTimeout = 15 * time.Second

// Services are the long-lived components the gateway exposes
type Services struct {
	Registry *service.Registry
	Chat     *service.ChatController
	Hub      *notify.Hub

	// Redis is nil when Redis is disabled
	Redis *redis.Client
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, svc Services) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	jwtManager := security.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authMiddleware := customMiddleware.NewAuthMiddleware(jwtManager)

	var ready handler.Pinger
	var rateLimitMiddleware *customMiddleware.RateLimitMiddleware
	if svc.Redis != nil {
		ready = svc.Redis
		rateLimitMiddleware = customMiddleware.NewRateLimitMiddleware(redis.NewRateLimiter(
			svc.Redis,
			cfg.Security.RateLimit.RequestsPerMinute,
			cfg.Security.RateLimit.Burst,
		))
	} else {
		log.Info().Msg("Redis disabled, rate limiting is off")
	}

	timeout := cfg.Server.MiddlewareTimeout
	if timeout <= 0 {
		timeout = defaultMiddlewareTimeout
	}

	sessionHandler := handler.NewSessionHandler(svc.Registry, svc.Chat, svc.Hub)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(timeout))
			r.Get("/health", handler.HealthCheck)
			r.Get("/ready", handler.ReadyCheck(ready))
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			if rateLimitMiddleware != nil {
				r.Use(rateLimitMiddleware.Limit)
			}

			r.Route("/sessions", func(r chi.Router) {
				// the event stream outlives any request timeout
				r.Get("/{sessionID}/events", sessionHandler.Events)

				r.Group(func(r chi.Router) {
					r.Use(middleware.Timeout(timeout))

					r.Post("/", sessionHandler.Open)
					r.Get("/{sessionID}", sessionHandler.Get)
					r.Delete("/{sessionID}", sessionHandler.Delete)
					r.Post("/{sessionID}/messages", sessionHandler.SendMessage)
				})
			})
		})
	})

	return r
}
