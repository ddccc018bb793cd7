package sniffer

import (
	"bytes"
	"errors"
	"net/http"
	"strings"
)

type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

// ErrUnsupportedFormat covers everything that is not a PNG or JPEG,
// including formats that would otherwise decode fine (GIF, BMP, WebP).
var ErrUnsupportedFormat = errors.New("unsupported image format")

type Result struct {
	Format Format
	MIME   string
}

// Detect inspects the leading bytes of an upload and returns the format.
// Detection happens before any row or blob is written, so unsupported
// payloads are rejected without side effects.
func Detect(head []byte) (Result, error) {
	if isJPEG(head) {
		return Result{Format: FormatJPEG, MIME: "image/jpeg"}, nil
	}
	if isPNG(head) {
		return Result{Format: FormatPNG, MIME: "image/png"}, nil
	}
	return Result{}, ErrUnsupportedFormat
}

func isJPEG(head []byte) bool {
	return len(head) > 3 &&
		head[0] == 0xff &&
		head[1] == 0xd8 &&
		head[2] == 0xff
}

func isPNG(head []byte) bool {
	pngMagic := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	return len(head) >= len(pngMagic) && bytes.Equal(head[:len(pngMagic)], pngMagic)
}

// DeclaredMIME extracts the media type an upload claims to be. Returns ""
// when the client declared nothing useful (missing header or a generic
// octet-stream part).
func DeclaredMIME(header http.Header) string {
	contentType := header.Get("Content-Type")
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	contentType = strings.TrimSpace(contentType)
	if !strings.HasPrefix(contentType, "image/") {
		return ""
	}
	return contentType
}
