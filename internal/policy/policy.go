// Package policy maps subscription tiers to derivation rights and plans
// the set of links created alongside a fresh upload. Both operations are
// pure so callers can resolve a policy once per request and pass it down.
package policy

import (
	"time"

	"github.com/TWolczanski/image-api/internal/ids"
	"github.com/TWolczanski/image-api/internal/models"
)

// DerivationPolicy is the per-request snapshot of what a user's tier
// entitles them to.
type DerivationPolicy struct {
	ThumbnailHeights   []int32
	AllowOriginalLink  bool
	AllowExpiringLinks bool
}

// ForTier resolves a tier into its derivation policy. A nil tier yields
// the zero policy: no thumbnails, no original link, no expiring links.
// A missing tier is not an error.
func ForTier(tier *models.Tier) DerivationPolicy {
	if tier == nil {
		return DerivationPolicy{}
	}
	return DerivationPolicy{
		ThumbnailHeights:   tier.ThumbnailSizes,
		AllowOriginalLink:  tier.AllowOriginalLink,
		AllowExpiringLinks: tier.AllowExpiringLinks,
	}
}

// Plan returns the derived links to create for a freshly uploaded image:
// one permanent link per distinct thumbnail height plus, when the policy
// allows it, one permanent link to the original. Duplicate heights in the
// policy collapse to a single link. Emission order carries no meaning.
func Plan(imageID string, p DerivationPolicy, now time.Time) []models.DerivedLink {
	seen := make(map[int32]struct{}, len(p.ThumbnailHeights))
	links := make([]models.DerivedLink, 0, len(p.ThumbnailHeights)+1)

	for _, h := range p.ThumbnailHeights {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		height := h
		links = append(links, models.DerivedLink{
			ID:           ids.New(),
			ImageID:      imageID,
			TargetHeight: &height,
			CreatedAt:    now,
		})
	}

	if p.AllowOriginalLink {
		links = append(links, models.DerivedLink{
			ID:        ids.New(),
			ImageID:   imageID,
			CreatedAt: now,
		})
	}

	return links
}
