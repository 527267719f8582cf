package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/DioBrando1866/tekken-tournaments/brackets"
	"github.com/DioBrando1866/tekken-tournaments/cache"
	"github.com/DioBrando1866/tekken-tournaments/config"
	"github.com/DioBrando1866/tekken-tournaments/db"
	"github.com/DioBrando1866/tekken-tournaments/handlers"
	"github.com/DioBrando1866/tekken-tournaments/repositories"
	api "github.com/DioBrando1866/tekken-tournaments/routes"
	"github.com/DioBrando1866/tekken-tournaments/services"
	"github.com/DioBrando1866/tekken-tournaments/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	if err := run(cfg, logger); err != nil {
		logger.Error("application failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("application exited")
}

// run owns every resource so deferred closers finish before main exits.
func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbConn, err := db.Connect(cfg.DatabaseURL, cfg.DBConnectTimeout)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	if err := db.EnsureSchema(ctx, dbConn); err != nil {
		return fmt.Errorf("apply database schema: %w", err)
	}

	// Optional collaborators stay nil interfaces when disabled.
	var bracketCache services.BracketCache
	if cfg.RedisURL != "" {
		redisClient, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer redisClient.Close()
		bracketCache = cache.NewBracketCache(redisClient, cfg.BracketCacheTTL)
		logger.Info("redis bracket cache enabled", slog.Duration("ttl", cfg.BracketCacheTTL))
	}

	var archiver services.BracketArchiver
	if cfg.R2Enabled() {
		uploader, err := storage.NewCloudflareR2Uploader(ctx, storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("initialize Cloudflare R2 uploader: %w", err)
		}
		archiver = storage.NewBracketArchiver(uploader)
		logger.Info("Cloudflare R2 bracket archive enabled", slog.String("bucket", cfg.R2BucketName))
	}

	wsHub := brackets.NewHub(logger)
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		wsHub.Run(ctx)
	}()
	logger.Info("websocket hub started")

	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	playerRepo := repositories.NewPostgresPlayerRepository(dbConn)
	bracketRepo := repositories.NewPostgresBracketRepository(dbConn)
	txRunner := repositories.NewTxRunner(dbConn)

	tournamentService := services.NewTournamentService(tournamentRepo, playerRepo, bracketRepo, txRunner, wsHub, bracketCache, archiver, logger)
	bracketService := services.NewBracketService(
		tournamentRepo,
		playerRepo,
		bracketRepo,
		txRunner,
		wsHub,
		bracketCache,
		archiver,
		services.BracketServiceConfig{
			AutoAdvanceByes: cfg.AutoAdvanceByes,
			MaxRetries:      cfg.BracketMaxRetries,
		},
		logger,
	)

	tournamentHandler := handlers.NewTournamentHandler(tournamentService, logger)
	bracketHandler := handlers.NewBracketHandler(bracketService, logger)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, tournamentService, cfg.CORSAllowedOrigins, logger)

	router := chi.NewRouter()
	api.SetupRoutes(router, api.Options{
		JWTSecret:          []byte(cfg.JWTSecretKey),
		AllowedOrigins:     cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	}, tournamentHandler, bracketHandler, webSocketHandler)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server error: %w", err)
		}
		stop()
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			runErr = fmt.Errorf("graceful shutdown failed: %w", err)
		} else {
			logger.Info("server shutdown complete")
		}
	}

	<-hubDone
	return runErr
}
