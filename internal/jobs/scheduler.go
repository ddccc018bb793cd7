package jobs

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/TWolczanski/image-api/internal/config"
)

// Scheduler periodically enqueues link compaction onto the maintenance
// stream. The worker picks tasks up from there; losing one only delays
// physical cleanup of long-expired rows.
type Scheduler struct {
	cron  *cron.Cron
	queue *redis.Client
	cfg   config.MaintenanceConfig
	log   zerolog.Logger
}

func NewScheduler(queue *redis.Client, cfg config.MaintenanceConfig, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:  cron.New(cron.WithSeconds()),
		queue: queue,
		cfg:   cfg,
		log:   log,
	}
}

func (s *Scheduler) Start() error {
	if s.queue == nil {
		return nil
	}

	if _, err := s.cron.AddFunc(s.cfg.Schedule, s.enqueueCompact); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) enqueueCompact() {
	_, err := s.queue.XAdd(context.Background(), &redis.XAddArgs{
		Stream: s.cfg.Stream,
		Values: map[string]any{"type": "compact"},
	}).Result()
	if err != nil {
		s.log.Error().Err(err).Msg("enqueue compact failed")
		return
	}
	s.log.Debug().Msg("compact task enqueued")
}
