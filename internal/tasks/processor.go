package tasks

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/TWolczanski/image-api/internal/repository"
)

// Processor executes maintenance tasks. Compaction physically deletes
// link rows that expired long ago; it is storage hygiene, never the
// mechanism that makes expired links invisible.
type Processor struct {
	links        repository.LinkStore
	compactAfter time.Duration
	log          zerolog.Logger
	now          func() time.Time
}

func NewProcessor(links repository.LinkStore, compactAfter time.Duration, log zerolog.Logger) *Processor {
	return &Processor{
		links:        links,
		compactAfter: compactAfter,
		log:          log,
		now:          time.Now,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	taskType, _ := msg.Values["type"].(string)

	switch taskType {
	case "compact":
		return p.compact(ctx)
	default:
		p.log.Warn().Str("type", taskType).Msg("unknown task type")
		return nil
	}
}

func (p *Processor) compact(ctx context.Context) error {
	cutoff := p.now().Add(-p.compactAfter)
	deleted, err := p.links.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	p.log.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("expired links compacted")
	return nil
}
