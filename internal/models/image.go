package models

import "time"

// Image is an uploaded original. Originals are immutable: the stored bytes
// never change after upload, so renditions can be computed from them at any
// point without coordination.
type Image struct {
	ID        string
	OwnerID   string
	Bucket    string
	ObjectKey string
	Format    string // "png" or "jpeg"
	Width     int
	Height    int
	SizeBytes int64
	CreatedAt time.Time
}

// DerivedLink is an independently resolvable handle to either the original
// image (TargetHeight == nil) or a rendition resized to TargetHeight pixels.
// Links are never updated after creation; they disappear either by cascading
// image deletion or by expiring.
type DerivedLink struct {
	ID           string
	ImageID      string
	TargetHeight *int32
	Expiry       *time.Duration
	CreatedAt    time.Time
}

// ValidAt reports whether the link is accessible at the given instant.
// An expired link must be indistinguishable from one that never existed,
// so every lookup and listing path applies this same rule.
func (l DerivedLink) ValidAt(now time.Time) bool {
	if l.Expiry == nil {
		return true
	}
	return now.Sub(l.CreatedAt) <= *l.Expiry
}
