package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TWolczanski/image-api/internal/models"
)

var ErrTierNotFound = errors.New("tier not found")

type TierRepository struct {
	pool *pgxpool.Pool
}

func NewTierRepository(pool *pgxpool.Pool) *TierRepository {
	return &TierRepository{pool: pool}
}

func (r *TierRepository) GetByID(ctx context.Context, id string) (models.Tier, error) {
	const query = `
		SELECT id, name, thumbnail_sizes, allow_original_link, allow_expiring_links
		FROM tiers WHERE id = $1
	`
	row := r.pool.QueryRow(ctx, query, id)

	var tier models.Tier
	if err := row.Scan(
		&tier.ID,
		&tier.Name,
		&tier.ThumbnailSizes,
		&tier.AllowOriginalLink,
		&tier.AllowExpiringLinks,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Tier{}, ErrTierNotFound
		}
		return models.Tier{}, err
	}
	return tier, nil
}
