package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"path"
	"time"

	_ "image/jpeg"
	_ "image/png"

	"github.com/rs/zerolog"

	"github.com/TWolczanski/image-api/internal/config"
	"github.com/TWolczanski/image-api/internal/ids"
	"github.com/TWolczanski/image-api/internal/media/sniffer"
	"github.com/TWolczanski/image-api/internal/models"
	"github.com/TWolczanski/image-api/internal/policy"
	"github.com/TWolczanski/image-api/internal/repository"
	"github.com/TWolczanski/image-api/internal/storage"
)

var (
	ErrEmptyFile      = errors.New("empty file")
	ErrFormatMismatch = errors.New("declared content type does not match file content")
)

type UploadInput struct {
	User models.User
	Data []byte
	// DeclaredMIME is the content type the client claimed, "" if none.
	DeclaredMIME string
}

type UploadResult struct {
	Image models.Image
	Links []models.DerivedLink
}

type UploadService struct {
	images repository.ImageStore
	tiers  repository.TierStore
	blobs  storage.BlobStore
	cfg    *config.AppConfig
	log    zerolog.Logger
	now    func() time.Time
}

func NewUploadService(images repository.ImageStore, tiers repository.TierStore, blobs storage.BlobStore, cfg *config.AppConfig, log zerolog.Logger) *UploadService {
	return &UploadService{
		images: images,
		tiers:  tiers,
		blobs:  blobs,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

// Upload validates the payload, persists the original, and fans out the
// tier-mandated derived links. The image row and its links are written as
// one atomic unit; validation failures happen before anything is stored.
func (s *UploadService) Upload(ctx context.Context, input UploadInput) (UploadResult, error) {
	if len(input.Data) == 0 {
		return UploadResult{}, ErrEmptyFile
	}

	detected, err := sniffer.Detect(input.Data)
	if err != nil {
		return UploadResult{}, err
	}
	if input.DeclaredMIME != "" && input.DeclaredMIME != detected.MIME {
		return UploadResult{}, ErrFormatMismatch
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(input.Data))
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: %v", sniffer.ErrUnsupportedFormat, err)
	}

	derivation, err := resolvePolicy(ctx, s.tiers, input.User)
	if err != nil {
		return UploadResult{}, err
	}

	now := s.now().UTC()
	imageID := ids.New()
	objectKey := buildObjectKey(imageID, string(detected.Format), now)

	if err := s.blobs.Put(ctx, objectKey, input.Data, detected.MIME); err != nil {
		return UploadResult{}, fmt.Errorf("store original: %w", err)
	}

	img := models.Image{
		ID:        imageID,
		OwnerID:   input.User.ID,
		Bucket:    s.cfg.Storage.Bucket,
		ObjectKey: objectKey,
		Format:    string(detected.Format),
		Width:     cfg.Width,
		Height:    cfg.Height,
		SizeBytes: int64(len(input.Data)),
		CreatedAt: now,
	}
	links := policy.Plan(imageID, derivation, now)

	if err := s.images.CreateWithLinks(ctx, img, links); err != nil {
		// The blob is orphaned if this cleanup fails; the registry stays
		// consistent either way.
		if rmErr := s.blobs.Remove(ctx, objectKey); rmErr != nil {
			s.log.Warn().Err(rmErr).Str("object_key", objectKey).Msg("orphaned blob cleanup failed")
		}
		return UploadResult{}, fmt.Errorf("save image: %w", err)
	}

	return UploadResult{Image: img, Links: links}, nil
}

func buildObjectKey(imageID string, ext string, now time.Time) string {
	return path.Join(now.Format("2006/01/02"), fmt.Sprintf("%s.%s", imageID, ext))
}
