package ids

import "github.com/segmentio/ksuid"

// New returns a URL-safe identifier suitable for use as a public handle.
// KSUIDs carry 128 bits of entropy, so handles cannot be guessed or
// enumerated even though they sort roughly by creation time.
func New() string {
	return ksuid.New().String()
}
