package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	appLogger "github.com/geonear/nearby-service/app/logger"
	"github.com/geonear/nearby-service/app/observability/metrics"
	"github.com/geonear/nearby-service/app/tracer"
	"github.com/geonear/nearby-service/config"
	"github.com/geonear/nearby-service/internal/api/nearby"
	"github.com/geonear/nearby-service/internal/places"
	appRouter "github.com/geonear/nearby-service/internal/router"
)

func main() {
	// Use standard log until slog is configured, in case godotenv fails
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("FATAL: Error initializing config: %v", err)
	}

	// --- Logger Setup ---
	logger := setupLogger()
	slog.SetDefault(logger)

	// --- Application Context & Shutdown ---
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Observability Setup ---
	tracer.InitTracingAndMetrics("nearby-service", cfg.Handlers.Prometheus.Port)
	metrics.InitAppMetrics()
	observer := places.NewMetricsObserver()

	// --- Dependency Injection ---
	upstream, err := places.NewClient(
		cfg.Upstream.BaseURL,
		&http.Client{Timeout: cfg.Upstream.Timeout},
		cfg.Upstream.RequestsPerSecond,
		observer,
		logger,
	)
	if err != nil {
		logger.Error("Failed to initialize upstream places client", slog.Any("error", err))
		os.Exit(1)
	}

	nearbyService := nearby.NewServiceImpl(
		upstream,
		cfg.Pipeline.NearbyCacheTTL,
		cfg.Pipeline.DetailsCacheTTL,
		observer,
		logger,
	)
	nearbyHandler := nearby.NewHandler(nearbyService, nearby.Defaults{
		RadiusKm: cfg.Pipeline.DefaultRadiusKm,
		Limit:    cfg.Pipeline.DefaultLimit,
	}, logger)

	// --- Router Setup ---
	mainRouter := appRouter.SetupRouter(&appRouter.Config{
		NearbyHandler:  nearbyHandler,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(appLogger.StructuredLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.StripSlashes)
	router.Use(middleware.Timeout(cfg.Server.Timeout))
	router.Use(middleware.Compress(5, "application/json"))
	router.Mount("/", mainRouter)

	// --- HTTP Server Setup ---
	serverAddress := fmt.Sprintf(":%s", cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddress,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	go func() {
		logger.Info("Starting HTTP server", slog.String("address", serverAddress))
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server ListenAndServe error", slog.Any("error", err))
			cancel()
		}
	}()

	<-ctx.Done()

	// --- Graceful Shutdown ---
	logger.Info("Shutdown signal received, starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", slog.Any("error", err))
	} else {
		logger.Info("HTTP server gracefully stopped")
	}

	logger.Info("Application shut down complete.")
}

// setupLogger configures and returns the application logger.
func setupLogger() *slog.Logger {
	var logger *slog.Logger
	env := os.Getenv("APP_ENV")

	if env == "development" || env == "" { // Default to development if not set
		// Colored logs for development
		tintOpts := &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}
		logger = slog.New(tint.NewHandler(os.Stdout, tintOpts))
		log.Println("Initialized development logger (tint)")
	} else {
		// JSON logs for production or other environments
		jsonOpts := &slog.HandlerOptions{
			Level:     slog.LevelInfo,
			AddSource: false,
		}
		logger = slog.New(slog.NewJSONHandler(os.Stdout, jsonOpts))
		log.Println("Initialized production logger (JSON)")
	}
	return logger
}
