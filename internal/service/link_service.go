package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/TWolczanski/image-api/internal/config"
	"github.com/TWolczanski/image-api/internal/ids"
	"github.com/TWolczanski/image-api/internal/models"
	"github.com/TWolczanski/image-api/internal/render"
	"github.com/TWolczanski/image-api/internal/repository"
	"github.com/TWolczanski/image-api/internal/storage"
)

var (
	// ErrLinkNotFound is returned for unknown, expired and not-owned link
	// ids alike, so a reader learns nothing about links they cannot access.
	ErrLinkNotFound = errors.New("link not found")
	// ErrUnknownImage is a validation failure: the referenced image id does
	// not exist at all.
	ErrUnknownImage = errors.New("unknown image")
	// ErrNotImageOwner rejects custom-link creation on someone else's image.
	ErrNotImageOwner = errors.New("requester does not own the image")
	// ErrExpiringLinksNotAllowed rejects custom-link creation for tiers
	// without the right (including users with no tier).
	ErrExpiringLinksNotAllowed = errors.New("tier does not allow expiring links")
	// ErrExpiryOutOfBounds rejects a caller-chosen expiry outside the
	// configured inclusive bounds.
	ErrExpiryOutOfBounds = errors.New("expiry out of bounds")
)

type LinkService struct {
	links  repository.LinkStore
	images repository.ImageStore
	tiers  repository.TierStore
	blobs  storage.BlobStore
	cfg    *config.AppConfig
	log    zerolog.Logger
	now    func() time.Time
}

func NewLinkService(links repository.LinkStore, images repository.ImageStore, tiers repository.TierStore, blobs storage.BlobStore, cfg *config.AppConfig, log zerolog.Logger) *LinkService {
	return &LinkService{
		links:  links,
		images: images,
		tiers:  tiers,
		blobs:  blobs,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

// CreateExpiring mints a custom time-bounded link to the original image.
// Custom links always target the original; preset thumbnail links exist
// only through the upload fan-out.
func (s *LinkService) CreateExpiring(ctx context.Context, user models.User, imageID string, expiry time.Duration) (models.DerivedLink, error) {
	if expiry < s.cfg.Links.MinExpiry || expiry > s.cfg.Links.MaxExpiry {
		return models.DerivedLink{}, ErrExpiryOutOfBounds
	}

	img, err := s.images.GetByID(ctx, imageID)
	if err != nil {
		if errors.Is(err, repository.ErrImageNotFound) {
			return models.DerivedLink{}, ErrUnknownImage
		}
		return models.DerivedLink{}, err
	}
	if img.OwnerID != user.ID {
		return models.DerivedLink{}, ErrNotImageOwner
	}

	derivation, err := resolvePolicy(ctx, s.tiers, user)
	if err != nil {
		return models.DerivedLink{}, err
	}
	if !derivation.AllowExpiringLinks {
		return models.DerivedLink{}, ErrExpiringLinksNotAllowed
	}

	link := models.DerivedLink{
		ID:        ids.New(),
		ImageID:   img.ID,
		Expiry:    &expiry,
		CreatedAt: s.now().UTC(),
	}
	if err := s.links.Create(ctx, link); err != nil {
		return models.DerivedLink{}, fmt.Errorf("save link: %w", err)
	}
	return link, nil
}

// Resolve turns a link id into streamable pixel data. The lookup is scoped
// to the requester's images and filtered by the validity predicate, so
// expired, foreign and nonexistent ids are indistinguishable. The
// rendition is computed fresh on every call.
func (s *LinkService) Resolve(ctx context.Context, user models.User, linkID string) (render.Rendition, error) {
	link, img, err := s.links.GetValidOwned(ctx, linkID, user.ID, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return render.Rendition{}, ErrLinkNotFound
		}
		return render.Rendition{}, err
	}

	original, err := s.blobs.Fetch(ctx, img.ObjectKey)
	if err != nil {
		return render.Rendition{}, fmt.Errorf("fetch original: %w", err)
	}

	if link.TargetHeight == nil {
		return render.Rendition{Data: original, Format: img.Format}, nil
	}

	rendition, err := render.Thumbnail(original, int(*link.TargetHeight))
	if err != nil {
		return render.Rendition{}, fmt.Errorf("render %s at height %d: %w", img.ID, *link.TargetHeight, err)
	}
	return rendition, nil
}
