// Package render produces renditions from original image bytes. Renders
// are computed fresh on every access; nothing here persists derived bytes.
package render

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Rendition is resolvable pixel data ready to stream: encoded bytes plus
// the format they are encoded in.
type Rendition struct {
	Data   []byte
	Format string
}

func (r Rendition) ContentType() string {
	return "image/" + r.Format
}

// TargetWidth computes the width of a rendition resized to targetHeight,
// preserving the aspect ratio of a w x h original. Halves round away from
// zero (Go's math.Round), e.g. 800x600 at height 200 yields width 267.
func TargetWidth(w, h, targetHeight int) int {
	return int(math.Round(float64(w) / float64(h) * float64(targetHeight)))
}

// Thumbnail decodes src, scales it so the height becomes exactly
// targetHeight, and re-encodes in the source format. Only PNG and JPEG
// sources exist past the upload gate.
func Thumbnail(src []byte, targetHeight int) (Rendition, error) {
	img, format, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return Rendition{}, fmt.Errorf("decode original: %w", err)
	}

	bounds := img.Bounds()
	width := TargetWidth(bounds.Dx(), bounds.Dy(), targetHeight)
	resized := imaging.Resize(img, width, targetHeight, imaging.Lanczos)

	var encFormat imaging.Format
	switch format {
	case "png":
		encFormat = imaging.PNG
	case "jpeg":
		encFormat = imaging.JPEG
	default:
		return Rendition{}, fmt.Errorf("cannot re-encode format %q", format)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, encFormat); err != nil {
		return Rendition{}, fmt.Errorf("encode rendition: %w", err)
	}

	return Rendition{Data: buf.Bytes(), Format: format}, nil
}
