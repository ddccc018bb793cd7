package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/TWolczanski/image-api/internal/cache"
	"github.com/TWolczanski/image-api/internal/config"
	"github.com/TWolczanski/image-api/internal/database"
	"github.com/TWolczanski/image-api/internal/log"
	"github.com/TWolczanski/image-api/internal/queue"
	"github.com/TWolczanski/image-api/internal/repository"
	"github.com/TWolczanski/image-api/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	defer redisClient.Close()

	linkRepo := repository.NewLinkRepository(dbPool)
	processor := tasks.NewProcessor(linkRepo, cfg.Maintenance.CompactAfter, logger)
	consumer := queue.NewConsumer(
		redisClient,
		cfg.Maintenance.Stream,
		cfg.Maintenance.Group,
		cfg.Maintenance.Consumer,
		cfg.Maintenance.ClaimInterval,
		logger,
		processor,
	)

	logger.Info().Str("stream", cfg.Maintenance.Stream).Msg("maintenance worker starting")

	if err := consumer.Start(ctx); err != nil && err != context.Canceled {
		logger.Fatal().Err(err).Msg("consumer stopped unexpectedly")
	}

	logger.Info().Msg("worker exited cleanly")
}
