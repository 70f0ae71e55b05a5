package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TsaH0/CircleOfInevitibility-backend/internal/catalog"
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/config"
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/database"
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/handlers"
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/migrations"
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/routes"
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/services"
	"github.com/TsaH0/CircleOfInevitibility-backend/pkg/logger"
	"github.com/gin-gonic/gin"
)

func main() {
	// 0. Load Config & Initialize Logger
	cfg := config.LoadConfig()
	logger.Init(cfg.Env)
	logger.Info().Str("environment", cfg.Env).Msg("Starting CircleOfInevitibility backend...")

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.JWTSecret == "" {
		logger.Fatal().Msg("JWT_SECRET must be set outside development")
	}

	// 1. Database, migrations and cache
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close(db)

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	cache := database.NewCache(context.Background(), cfg.RedisAddr, cfg.RedisPassword)
	defer cache.Close()

	// 2. Catalog, built once and shared read-only
	cat, err := catalog.Load(cfg.ProblemsFile)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.ProblemsFile).Msg("Failed to load problem catalog")
	}
	logger.Info().Int("problems", cat.Len()).Int("topics", len(cat.Topics())).Msg("Problem catalog loaded")

	selector := catalog.NewSelector(cat, catalog.WithSeed(cfg.SelectorSeed))

	// 3. Services
	rating := services.NewRatingService(db)
	contests := services.NewContestService(db, selector, rating, cache)
	users := services.NewUserService(db, cache, cfg.JWTSecret)

	providers := services.NewProviderChain(services.ProviderConfig{
		GeminiKeys:    []string{cfg.GeminiAPIKey, cfg.SecondGeminiAPIKey},
		GroqKey:       cfg.GroqAPIKey,
		OpenRouterKey: cfg.OpenRouterAPIKey,
		Timeout:       time.Duration(cfg.ReflectionTimeoutSeconds) * time.Second,
	})
	if !providers.Configured() {
		logger.Warn().Msg("No reflection provider keys configured, reflections will fail")
	}
	reflections := services.NewReflectionService(db, providers)

	// 4. Router
	r := routes.NewRouter(routes.RouterOptions{
		JWTSecret:       cfg.JWTSecret,
		FrontendURL:     cfg.FrontendURL,
		MaintenanceMode: cfg.MaintenanceMode,
	}, db, routes.Handlers{
		Users:       handlers.NewUserHandler(users),
		Contests:    handlers.NewContestHandler(contests),
		Reflections: handlers.NewReflectionHandler(reflections, contests),
		Catalog:     handlers.NewCatalogHandler(cat),
	}, handlers.NewHealthHandler(db, cache))

	// 5. Start Server with graceful shutdown
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// generate-all calls the provider chain once per problem
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
