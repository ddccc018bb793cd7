package repository

import (
	"context"
	"time"

	"github.com/TWolczanski/image-api/internal/models"
)

// The store interfaces are what services consume; the pgx-backed types in
// this package implement them against Postgres, and tests substitute
// in-memory fakes.

type UserStore interface {
	Create(ctx context.Context, user models.User) error
	GetByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
}

type TierStore interface {
	GetByID(ctx context.Context, id string) (models.Tier, error)
}

type SessionStore interface {
	Create(ctx context.Context, session models.Session) error
	GetByID(ctx context.Context, id string) (models.Session, error)
	FindByRefreshHash(ctx context.Context, userID string, hash []byte) (models.Session, error)
	DeleteByID(ctx context.Context, id string) error
}

// ImageWithLinks pairs an image with the ids of its currently valid links
// for owner-facing listings.
type ImageWithLinks struct {
	Image models.Image
	Links []models.DerivedLink
}

type ImageStore interface {
	// CreateWithLinks persists an image and its planned derived links as
	// one atomic unit: either everything exists afterwards or nothing does.
	CreateWithLinks(ctx context.Context, image models.Image, links []models.DerivedLink) error
	GetByID(ctx context.Context, id string) (models.Image, error)
	ListByOwner(ctx context.Context, ownerID string, now time.Time) ([]ImageWithLinks, error)
}

type LinkStore interface {
	Create(ctx context.Context, link models.DerivedLink) error
	// GetValidOwned resolves a link id for a requester. Unknown ids,
	// expired links and links on images the requester does not own all
	// collapse into ErrLinkNotFound.
	GetValidOwned(ctx context.Context, id string, ownerID string, now time.Time) (models.DerivedLink, models.Image, error)
	// DeleteExpiredBefore physically removes links whose expiry passed
	// before cutoff. Storage hygiene only; never relied on for validity.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
