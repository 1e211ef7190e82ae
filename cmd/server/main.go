package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/partner-chat/internal/api"
	"github.com/Rrens/partner-chat/internal/config"
	"github.com/Rrens/partner-chat/internal/domain"
	"github.com/Rrens/partner-chat/internal/guard"
	"github.com/Rrens/partner-chat/internal/logger"
	"github.com/Rrens/partner-chat/internal/notify"
	"github.com/Rrens/partner-chat/internal/partner"
	"github.com/Rrens/partner-chat/internal/repository/redis"
	"github.com/Rrens/partner-chat/internal/service"
)

func main() {
	// Load .env file - try multiple locations
	envPaths := []string{".env", "../.env", "../../.env"}
	envLoaded := false
	for _, p := range envPaths {
		if err := godotenv.Load(p); err == nil {
			fmt.Printf("Loaded .env from: %s\n", p)
			envLoaded = true
			break
		}
	}
	if !envLoaded {
		fmt.Println("Warning: .env file not found in any standard location")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	if os.Getenv("ENV") != "production" && cfg.Logging.Format == "json" {
		cfg.Logging.Format = "console"
	}
	logCloser, err := logger.Setup(cfg.Logging)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}
	defer logCloser.Close()

	if cfg.Auth.JWTSecret == "" {
		log.Fatal().Msg("auth.jwt_secret is required")
	}

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("partner", cfg.Partner.BaseURL).
		Msg("Starting partner chat gateway")

	// Initialize Redis
	var redisClient *redis.Client
	var greetings domain.GreetingStore
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(context.Background(), cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()
		greetings = redis.NewGreetingStore(redisClient, cfg.Redis.GreetingTTL)
	}

	// Initialize chat core
	hub := notify.NewHub(notify.DefaultBuffer)
	callGuard := guard.New(guard.WithMinInterval(cfg.Guard.MinSendInterval))
	client := partner.NewClient(cfg.Partner.BaseURL)

	chat := service.NewChatController(client, hub, callGuard, service.ChatOptions{
		SendTimeout: cfg.Partner.SendTimeout,
		SourceLimit: cfg.Partner.SourceLimit,
	})
	warmup := service.NewWarmupCache(client, hub, callGuard, greetings, service.WarmupOptions{
		Timeout:  cfg.Partner.WarmupTimeout,
		Debounce: cfg.Guard.WarmupDebounce,
	})
	registry := service.NewRegistry(warmup, callGuard)
	registry.OnClose(hub.CloseSession)

	// Initialize router
	router := api.NewRouter(cfg, api.Services{
		Registry: registry,
		Chat:     chat,
		Hub:      hub,
		Redis:    redisClient,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// closing the sessions ends open event streams so Shutdown can drain
	registry.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
