package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/TWolczanski/image-api/internal/media/sniffer"
	"github.com/TWolczanski/image-api/internal/models"
	"github.com/TWolczanski/image-api/internal/service"
)

type linkResponse struct {
	ID           string     `json:"id"`
	TargetHeight *int32     `json:"targetHeight"`
	ExpiresAt    *time.Time `json:"expiresAt"`
}

type imageResponse struct {
	ID        string         `json:"id"`
	Format    string         `json:"format"`
	Width     int            `json:"width"`
	Height    int            `json:"height"`
	SizeBytes int64          `json:"sizeBytes"`
	CreatedAt time.Time      `json:"createdAt"`
	Links     []linkResponse `json:"links"`
}

// UploadImage accepts a multipart upload and responds with the image
// descriptor plus the handles of every auto-created derived link.
func (h HandlerSet) UploadImage(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file_required", "field": "file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable_file", "field": "file"})
		return
	}

	result, err := h.uploads.Upload(c.Request.Context(), service.UploadInput{
		User:         user,
		Data:         data,
		DeclaredMIME: sniffer.DeclaredMIME(http.Header(header.Header)),
	})
	if err != nil {
		switch {
		case errors.Is(err, sniffer.ErrUnsupportedFormat):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "unsupported image format, only PNG and JPEG files are supported",
				"field": "file",
			})
		case errors.Is(err, service.ErrEmptyFile), errors.Is(err, service.ErrFormatMismatch):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": "file"})
		default:
			h.log.Error().Err(err).Str("user_id", user.ID).Msg("upload failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload_failed"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"image": toImageResponse(result.Image, result.Links),
	})
}

func (h HandlerSet) ListImages(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	items, err := h.images.ListByOwner(c.Request.Context(), user.ID, time.Now())
	if err != nil {
		h.log.Error().Err(err).Str("user_id", user.ID).Msg("list images failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}

	resp := make([]imageResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, toImageResponse(item.Image, item.Links))
	}

	c.JSON(http.StatusOK, gin.H{"images": resp})
}

func toImageResponse(image models.Image, links []models.DerivedLink) imageResponse {
	linkResps := make([]linkResponse, 0, len(links))
	for _, link := range links {
		linkResps = append(linkResps, toLinkResponse(link))
	}
	return imageResponse{
		ID:        image.ID,
		Format:    image.Format,
		Width:     image.Width,
		Height:    image.Height,
		SizeBytes: image.SizeBytes,
		CreatedAt: image.CreatedAt,
		Links:     linkResps,
	}
}

func toLinkResponse(link models.DerivedLink) linkResponse {
	var expiresAt *time.Time
	if link.Expiry != nil {
		t := link.CreatedAt.Add(*link.Expiry)
		expiresAt = &t
	}
	return linkResponse{
		ID:           link.ID,
		TargetHeight: link.TargetHeight,
		ExpiresAt:    expiresAt,
	}
}
