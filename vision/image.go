// Package vision provides image decoding and preprocessing for the
// visualization pipeline: source photo validation before any external call,
// and downscaled copies used to bound analyzer/validator payload sizes.
package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"net/http"

	"golang.org/x/image/draw"
)

// Image validation errors
var (
	ErrEmptyImage        = errors.New("vision: empty image data")
	ErrInvalidImage      = errors.New("vision: invalid image data")
	ErrUnsupportedFormat = errors.New("vision: unsupported image format")
	ErrImageTooLarge     = errors.New("vision: image exceeds size limit")
	ErrImageTooSmall     = errors.New("vision: image below minimum dimensions")
)

// Minimum source photo dimensions. Anything smaller carries too little
// structure for conditioning or analysis to work with.
const (
	MinWidth  = 64
	MinHeight = 64
)

// DefaultThumbnailEdge is the long-edge size used for analyzer and
// validator payloads.
const DefaultThumbnailEdge = 768

// SourceImage is a decoded and validated source photo.
type SourceImage struct {
	Data     []byte
	MimeType string
	Width    int
	Height   int
}

// SniffMimeType detects the MIME type of image data from its leading bytes.
func SniffMimeType(data []byte) string {
	return http.DetectContentType(data)
}

// ValidateSource decodes and validates an uploaded source photo.
// It checks size limits, decodability, supported formats (PNG, JPEG, GIF)
// and minimum dimensions, returning a SourceImage ready for the pipeline.
func ValidateSource(data []byte, maxBytes int64) (*SourceImage, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrImageTooLarge, len(data), maxBytes)
	}

	mime := SniffMimeType(data)
	switch mime {
	case "image/png", "image/jpeg", "image/gif":
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mime)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if cfg.Width < MinWidth || cfg.Height < MinHeight {
		return nil, fmt.Errorf("%w: %dx%d (minimum %dx%d)",
			ErrImageTooSmall, cfg.Width, cfg.Height, MinWidth, MinHeight)
	}

	return &SourceImage{
		Data:     data,
		MimeType: mime,
		Width:    cfg.Width,
		Height:   cfg.Height,
	}, nil
}

// Decode decodes image data from common formats (PNG, JPEG, GIF).
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	return img, nil
}

// Thumbnail downscales an image so its long edge is at most maxEdge pixels,
// preserving aspect ratio, and re-encodes it as JPEG. Images already within
// bounds are re-encoded without scaling. Used to bound the payload size of
// vision-model calls; generation always receives the full-resolution source.
func Thumbnail(data []byte, maxEdge int) ([]byte, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	longEdge := max(width, height)
	if longEdge > maxEdge {
		scale := float64(maxEdge) / float64(longEdge)
		newWidth := int(float64(width) * scale)
		newHeight := int(float64(height) * scale)

		dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("vision: thumbnail encode failed: %w", err)
	}
	return buf.Bytes(), nil
}
