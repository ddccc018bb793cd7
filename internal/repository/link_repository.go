package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TWolczanski/image-api/internal/models"
)

// ErrLinkNotFound deliberately covers unknown ids, expired links and links
// owned by someone else. Collapsing the three keeps read paths from
// leaking whether a handle exists.
var ErrLinkNotFound = errors.New("link not found")

type LinkRepository struct {
	pool *pgxpool.Pool
}

func NewLinkRepository(pool *pgxpool.Pool) *LinkRepository {
	return &LinkRepository{pool: pool}
}

func (r *LinkRepository) Create(ctx context.Context, link models.DerivedLink) error {
	const query = `
		INSERT INTO derived_links (id, image_id, target_height, expiry_seconds, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		link.ID,
		link.ImageID,
		link.TargetHeight,
		expiryToSeconds(link.Expiry),
		link.CreatedAt,
	)
	return err
}

func (r *LinkRepository) GetValidOwned(ctx context.Context, id string, ownerID string, now time.Time) (models.DerivedLink, models.Image, error) {
	const query = `
		SELECT l.id, l.image_id, l.target_height, l.expiry_seconds, l.created_at,
		       i.id, i.owner_id, i.bucket, i.object_key, i.format, i.width, i.height, i.size_bytes, i.created_at
		FROM derived_links l
		JOIN images i ON i.id = l.image_id
		WHERE l.id = $1
		  AND i.owner_id = $2
		  AND (l.expiry_seconds IS NULL OR l.created_at + make_interval(secs => l.expiry_seconds) >= $3)
	`
	row := r.pool.QueryRow(ctx, query, id, ownerID, now)

	var (
		link   models.DerivedLink
		image  models.Image
		expiry *int64
	)
	if err := row.Scan(
		&link.ID,
		&link.ImageID,
		&link.TargetHeight,
		&expiry,
		&link.CreatedAt,
		&image.ID,
		&image.OwnerID,
		&image.Bucket,
		&image.ObjectKey,
		&image.Format,
		&image.Width,
		&image.Height,
		&image.SizeBytes,
		&image.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.DerivedLink{}, models.Image{}, ErrLinkNotFound
		}
		return models.DerivedLink{}, models.Image{}, err
	}
	link.Expiry = secondsToExpiry(expiry)
	return link, image, nil
}

func (r *LinkRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `
		DELETE FROM derived_links
		WHERE expiry_seconds IS NOT NULL
		  AND created_at + make_interval(secs => expiry_seconds) < $1
	`
	cmd, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
