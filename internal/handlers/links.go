package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/TWolczanski/image-api/internal/service"
)

type createLinkRequest struct {
	Image  string `json:"image" binding:"required"`
	Expiry int64  `json:"expiry" binding:"required,min=1"` // seconds
}

// CreateLink mints a custom expiring link to an owned image's original.
func (h HandlerSet) CreateLink(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req createLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	link, err := h.links.CreateExpiring(c.Request.Context(), user, req.Image, time.Duration(req.Expiry)*time.Second)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrExpiryOutOfBounds):
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("expiry must be between %d and %d seconds",
					int64(h.cfg.Links.MinExpiry.Seconds()), int64(h.cfg.Links.MaxExpiry.Seconds())),
				"field": "expiry",
			})
		case errors.Is(err, service.ErrUnknownImage):
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown image", "field": "image"})
		case errors.Is(err, service.ErrNotImageOwner):
			c.JSON(http.StatusForbidden, gin.H{"error": "you are not the owner of the image"})
		case errors.Is(err, service.ErrExpiringLinksNotAllowed):
			c.JSON(http.StatusForbidden, gin.H{"error": "your account tier does not allow creating expiring links"})
		default:
			h.log.Error().Err(err).Str("user_id", user.ID).Msg("create link failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create_link_failed"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"link": toLinkResponse(link)})
}

// ResolveLink streams the rendition behind a link id. Missing, expired and
// foreign links all answer 404.
func (h HandlerSet) ResolveLink(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	linkID := c.Param("id")

	rendition, err := h.links.Resolve(c.Request.Context(), user, linkID)
	if err != nil {
		if errors.Is(err, service.ErrLinkNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		h.log.Error().Err(err).Str("link_id", linkID).Msg("resolve link failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "resolve_failed"})
		return
	}

	filename := fmt.Sprintf("%s.%s", linkID, rendition.Format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, rendition.ContentType(), rendition.Data)
}
