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

	database "github.com/gearbox-labs/auto-parts-api/app/db"
	appLogger "github.com/gearbox-labs/auto-parts-api/app/logger"
	"github.com/gearbox-labs/auto-parts-api/app/observability/metrics"
	"github.com/gearbox-labs/auto-parts-api/app/tracer"
	"github.com/gearbox-labs/auto-parts-api/config"
	_ "github.com/gearbox-labs/auto-parts-api/docs"
	"github.com/gearbox-labs/auto-parts-api/internal/api/auth"
	"github.com/gearbox-labs/auto-parts-api/internal/api/parts"
	"github.com/gearbox-labs/auto-parts-api/internal/api/uploads"
	"github.com/gearbox-labs/auto-parts-api/internal/router"
)

// @title           Auto Parts API
// @version         1.0
// @description     Inventory backend for an auto parts store: session auth,
// @description     parts catalogue and image uploads.
// @BasePath        /
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

	logger := setupLogger()
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Database setup ---
	dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		os.Exit(1)
	}

	// Run migrations before initializing the main pool
	err = database.RunMigrations(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to run database migrations", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if !database.WaitForDB(ctx, pool, logger) {
		logger.Error("Database not ready after waiting, exiting.")
		os.Exit(1)
	}

	// --- Observability ---
	tracer.InitTracingAndMetrics(cfg.Handlers.Prometheus.Port)
	metrics.InitAppMetrics()

	// --- Image store ---
	imageStore, err := setupImageStore(ctx, cfg.Uploads, logger)
	if err != nil {
		logger.Error("Failed to initialize image store", slog.Any("error", err))
		os.Exit(1)
	}

	// --- Dependency injection ---
	authRepo := auth.NewPostgresRepository(pool, logger)
	authService := auth.NewService(authRepo, cfg.Auth, logger)
	authHandler := auth.NewHandler(authService, cfg.Auth, logger)

	partsRepo := parts.NewPostgresRepository(pool, logger)
	partsService := parts.NewService(partsRepo, imageStore, cfg.Uploads, cfg.Server.PublicBaseURL, logger)
	partsHandler := parts.NewHandler(partsService, logger)

	uploadsHandler := uploads.NewServeHandler(imageStore, logger)

	routerConfig := &router.Config{
		AuthHandler:            authHandler,
		PartsHandler:           partsHandler,
		UploadsHandler:         uploadsHandler,
		AuthenticateMiddleware: auth.Authenticate(logger, cfg.Auth),
		ClientURL:              cfg.Server.ClientURL,
	}
	mainRouter := router.SetupRouter(routerConfig)

	mux := chi.NewMux()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(appLogger.StructuredLogger(logger))
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.StripSlashes)
	mux.Use(middleware.Timeout(cfg.Server.Timeout))
	mux.Use(middleware.Compress(5, "application/json"))
	mux.Mount("/", mainRouter)

	// --- HTTP server ---
	serverAddress := fmt.Sprintf(":%s", cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddress,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
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

// setupImageStore picks the blob backend from configuration. MinIO gets its
// bucket created up front so the first upload does not pay for it, and both
// backends are seeded with the placeholder image that image-less parts link.
func setupImageStore(ctx context.Context, cfg config.UploadsConfig, logger *slog.Logger) (uploads.ImageStore, error) {
	var store uploads.ImageStore
	switch cfg.Backend {
	case "minio":
		minioStore, err := uploads.NewMinioStore(cfg, logger)
		if err != nil {
			return nil, err
		}
		if err := minioStore.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		store = minioStore
	case "disk", "":
		diskStore, err := uploads.NewDiskStore(cfg.Dir, logger)
		if err != nil {
			return nil, err
		}
		store = diskStore
	default:
		return nil, fmt.Errorf("unknown uploads backend %q", cfg.Backend)
	}

	if err := uploads.EnsurePlaceholder(ctx, store, cfg.Placeholder); err != nil {
		return nil, err
	}
	return store, nil
}

// setupLogger configures and returns the application logger.
func setupLogger() *slog.Logger {
	var logger *slog.Logger
	env := os.Getenv("APP_ENV")

	if env == "development" || env == "" {
		// Colored logs for development
		tintOpts := &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}
		logger = slog.New(tint.NewHandler(os.Stdout, tintOpts))
		log.Println("Initialized development logger (tint)")
	} else {
		// JSON logs for production
		jsonOpts := &slog.HandlerOptions{
			Level:     slog.LevelInfo,
			AddSource: false,
		}
		logger = slog.New(slog.NewJSONHandler(os.Stdout, jsonOpts))
		log.Println("Initialized production logger (JSON)")
	}
	return logger
}
