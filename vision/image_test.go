package vision

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// makePNG encodes a solid-color PNG of the given dimensions.
func makePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 180, B: 160, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode test PNG: %v", err)
	}
	return buf.Bytes()
}

func TestValidateSource(t *testing.T) {
	data := makePNG(t, 640, 480)

	src, err := ValidateSource(data, 0)
	if err != nil {
		t.Fatalf("ValidateSource failed: %v", err)
	}
	if src.MimeType != "image/png" {
		t.Errorf("MimeType = %s, want image/png", src.MimeType)
	}
	if src.Width != 640 || src.Height != 480 {
		t.Errorf("dimensions = %dx%d, want 640x480", src.Width, src.Height)
	}
}

func TestValidateSourceRejections(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		maxBytes int64
		wantErr  error
	}{
		{"empty", nil, 0, ErrEmptyImage},
		{"garbage", []byte("not an image at all, just text bytes"), 0, ErrUnsupportedFormat},
		// A PNG prefix sniffs as image/png but fails to decode.
		{"truncated png", makePNG(t, 100, 100)[:20], 0, ErrInvalidImage},
		{"too large", makePNG(t, 100, 100), 10, ErrImageTooLarge},
		{"too small", makePNG(t, 32, 32), 0, ErrImageTooSmall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateSource(tt.data, tt.maxBytes)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestThumbnailDownscales(t *testing.T) {
	data := makePNG(t, 2000, 1000)

	thumb, err := Thumbnail(data, 500)
	if err != nil {
		t.Fatalf("Thumbnail failed: %v", err)
	}

	img, err := Decode(thumb)
	if err != nil {
		t.Fatalf("thumbnail not decodable: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 500 {
		t.Errorf("width = %d, want 500", bounds.Dx())
	}
	if bounds.Dy() != 250 {
		t.Errorf("height = %d, want 250", bounds.Dy())
	}
	if SniffMimeType(thumb) != "image/jpeg" {
		t.Errorf("thumbnail mime = %s, want image/jpeg", SniffMimeType(thumb))
	}
}

func TestThumbnailKeepsSmallImages(t *testing.T) {
	data := makePNG(t, 300, 200)

	thumb, err := Thumbnail(data, 768)
	if err != nil {
		t.Fatalf("Thumbnail failed: %v", err)
	}

	img, err := Decode(thumb)
	if err != nil {
		t.Fatalf("thumbnail not decodable: %v", err)
	}
	if img.Bounds().Dx() != 300 || img.Bounds().Dy() != 200 {
		t.Errorf("dimensions changed: %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
}
