package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TWolczanski/image-api/internal/models"
)

var ErrImageNotFound = errors.New("image not found")

type ImageRepository struct {
	pool *pgxpool.Pool
}

func NewImageRepository(pool *pgxpool.Pool) *ImageRepository {
	return &ImageRepository{pool: pool}
}

// CreateWithLinks inserts the image row and its planned derived links in a
// single transaction. A failure anywhere rolls back the whole unit, so no
// image can become visible with a partial derivation set.
func (r *ImageRepository) CreateWithLinks(ctx context.Context, image models.Image, links []models.DerivedLink) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const imageQuery = `
		INSERT INTO images (id, owner_id, bucket, object_key, format, width, height, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if _, err := tx.Exec(ctx, imageQuery,
		image.ID,
		image.OwnerID,
		image.Bucket,
		image.ObjectKey,
		image.Format,
		image.Width,
		image.Height,
		image.SizeBytes,
		image.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert image: %w", err)
	}

	const linkQuery = `
		INSERT INTO derived_links (id, image_id, target_height, expiry_seconds, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, link := range links {
		if _, err := tx.Exec(ctx, linkQuery,
			link.ID,
			link.ImageID,
			link.TargetHeight,
			expiryToSeconds(link.Expiry),
			link.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert link: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *ImageRepository) GetByID(ctx context.Context, id string) (models.Image, error) {
	const query = `
		SELECT id, owner_id, bucket, object_key, format, width, height, size_bytes, created_at
		FROM images WHERE id = $1
	`
	row := r.pool.QueryRow(ctx, query, id)

	var image models.Image
	if err := row.Scan(
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
			return models.Image{}, ErrImageNotFound
		}
		return models.Image{}, err
	}
	return image, nil
}

// ListByOwner returns the caller's images newest first, each with the ids
// of its links that are still valid at the given instant. Expired links
// are filtered by the same predicate as every other read path.
func (r *ImageRepository) ListByOwner(ctx context.Context, ownerID string, now time.Time) ([]ImageWithLinks, error) {
	const query = `
		SELECT i.id, i.owner_id, i.bucket, i.object_key, i.format, i.width, i.height, i.size_bytes, i.created_at,
		       l.id, l.target_height, l.expiry_seconds, l.created_at
		FROM images i
		LEFT JOIN derived_links l
		    ON l.image_id = i.id
		   AND (l.expiry_seconds IS NULL OR l.created_at + make_interval(secs => l.expiry_seconds) >= $2)
		WHERE i.owner_id = $1
		ORDER BY i.created_at DESC, i.id
	`
	rows, err := r.pool.Query(ctx, query, ownerID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		result []ImageWithLinks
		index  = map[string]int{}
	)
	for rows.Next() {
		var (
			image      models.Image
			linkID     *string
			linkHeight *int32
			linkExpiry *int64
			linkAt     *time.Time
		)
		if err := rows.Scan(
			&image.ID,
			&image.OwnerID,
			&image.Bucket,
			&image.ObjectKey,
			&image.Format,
			&image.Width,
			&image.Height,
			&image.SizeBytes,
			&image.CreatedAt,
			&linkID,
			&linkHeight,
			&linkExpiry,
			&linkAt,
		); err != nil {
			return nil, err
		}

		pos, ok := index[image.ID]
		if !ok {
			pos = len(result)
			index[image.ID] = pos
			result = append(result, ImageWithLinks{Image: image})
		}

		if linkID != nil {
			result[pos].Links = append(result[pos].Links, models.DerivedLink{
				ID:           *linkID,
				ImageID:      image.ID,
				TargetHeight: linkHeight,
				Expiry:       secondsToExpiry(linkExpiry),
				CreatedAt:    *linkAt,
			})
		}
	}
	return result, rows.Err()
}

func expiryToSeconds(expiry *time.Duration) *int64 {
	if expiry == nil {
		return nil
	}
	secs := int64(expiry.Seconds())
	return &secs
}

func secondsToExpiry(secs *int64) *time.Duration {
	if secs == nil {
		return nil
	}
	d := time.Duration(*secs) * time.Second
	return &d
}
