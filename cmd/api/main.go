package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/TWolczanski/image-api/internal/cache"
	"github.com/TWolczanski/image-api/internal/config"
	"github.com/TWolczanski/image-api/internal/database"
	"github.com/TWolczanski/image-api/internal/handlers"
	"github.com/TWolczanski/image-api/internal/jobs"
	"github.com/TWolczanski/image-api/internal/log"
	"github.com/TWolczanski/image-api/internal/repository"
	"github.com/TWolczanski/image-api/internal/server"
	"github.com/TWolczanski/image-api/internal/service"
	"github.com/TWolczanski/image-api/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment)

	ctx := context.Background()

	if err := database.Migrate(cfg.Postgres.DSN); err != nil {
		logger.Fatal().Err(err).Msg("migrations failed")
	}

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	objectStore, err := storage.NewObjectStore(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	if err := objectStore.EnsureBucket(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure bucket failed")
	}

	userRepo := repository.NewUserRepository(dbPool)
	sessionRepo := repository.NewSessionRepository(dbPool)
	tierRepo := repository.NewTierRepository(dbPool)
	imageRepo := repository.NewImageRepository(dbPool)
	linkRepo := repository.NewLinkRepository(dbPool)

	authService := service.NewAuthService(userRepo, sessionRepo, cfg, logger)
	uploadService := service.NewUploadService(imageRepo, tierRepo, objectStore, cfg, logger)
	linkService := service.NewLinkService(linkRepo, imageRepo, tierRepo, objectStore, cfg, logger)

	handlerSet := handlers.NewHandlerSet(
		logger, cfg,
		authService, uploadService, linkService,
		userRepo, sessionRepo, imageRepo,
		dbPool, redisClient,
	)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(redisClient, cfg.Maintenance, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	scheduler.Stop()

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
