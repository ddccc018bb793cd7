package service

import (
	"context"
	"errors"

	"github.com/TWolczanski/image-api/internal/models"
	"github.com/TWolczanski/image-api/internal/policy"
	"github.com/TWolczanski/image-api/internal/repository"
)

// resolvePolicy looks up the requester's derivation rights once per
// request. No tier, or a tier that disappeared out from under the user,
// means the zero policy rather than an error.
func resolvePolicy(ctx context.Context, tiers repository.TierStore, user models.User) (policy.DerivationPolicy, error) {
	if user.TierID == nil {
		return policy.DerivationPolicy{}, nil
	}
	tier, err := tiers.GetByID(ctx, *user.TierID)
	if err != nil {
		if errors.Is(err, repository.ErrTierNotFound) {
			return policy.DerivationPolicy{}, nil
		}
		return policy.DerivationPolicy{}, err
	}
	return policy.ForTier(&tier), nil
}
