package models

import "time"

// Tier bundles the derivation rights of a subscription level. Thumbnail
// heights are positive pixel values; duplicates collapse at planning time.
type Tier struct {
	ID                 string
	Name               string
	ThumbnailSizes     []int32
	AllowOriginalLink  bool
	AllowExpiringLinks bool
}

// User owns images. TierID is nullable: a user without a tier has no
// derivation rights at all.
type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	DisplayName  string
	TierID       *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Session struct {
	ID               string
	UserID           string
	RefreshTokenHash []byte
	IPAddress        string
	UserAgent        string
	CreatedAt        time.Time
	ExpiresAt        time.Time
}
