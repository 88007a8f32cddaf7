// Package conditioning derives auxiliary structural images (depth map,
// edge map) from a source photo and assembles them into an ordered bundle
// for image generation. Extraction is best-effort: a missing or failed
// estimator degrades the bundle, never the pipeline.
package conditioning

import (
	"fmt"
	"strings"
)

// Role tags a conditioning image by its function in generation.
type Role string

const (
	RoleSource Role = "source"
	RoleDepth  Role = "depth"
	RoleEdge   Role = "edge"
)

// Default metric range applied when a depth estimator omits or corrupts
// its reported distances.
const (
	DefaultMetricMin = 0.1
	DefaultMetricMax = 10.0
)

// Image is one conditioning image. MetricMin/MetricMax are meaningful only
// for RoleDepth.
type Image struct {
	Role      Role
	Data      []byte
	MimeType  string
	MetricMin float64
	MetricMax float64
}

// Bundle is an ordered collection of conditioning images. Order is
// significant: generation passes the images positionally to the model,
// so the bundle always yields source first, then depth, then edge.
type Bundle struct {
	source *Image
	depth  *Image
	edge   *Image
}

// NewBundle creates a bundle seeded with the source image.
func NewBundle(sourceData []byte, mimeType string) *Bundle {
	return &Bundle{
		source: &Image{Role: RoleSource, Data: sourceData, MimeType: mimeType},
	}
}

// Add places an image into its role slot. Adding a second image for the
// same role replaces the first. Source images are ignored; the source is
// fixed at construction. A depth image with a missing or inverted metric
// range gets the default range.
func (b *Bundle) Add(img Image) {
	switch img.Role {
	case RoleDepth:
		if img.MetricMax <= img.MetricMin {
			img.MetricMin = DefaultMetricMin
			img.MetricMax = DefaultMetricMax
		}
		b.depth = &img
	case RoleEdge:
		b.edge = &img
	}
}

// Images returns the bundle contents in generation order: source, then
// depth if present, then edge if present.
func (b *Bundle) Images() []Image {
	out := make([]Image, 0, 3)
	if b.source != nil {
		out = append(out, *b.source)
	}
	if b.depth != nil {
		out = append(out, *b.depth)
	}
	if b.edge != nil {
		out = append(out, *b.edge)
	}
	return out
}

// HasDepth reports whether a depth map was extracted.
func (b *Bundle) HasDepth() bool { return b.depth != nil }

// HasEdge reports whether an edge map was extracted.
func (b *Bundle) HasEdge() bool { return b.edge != nil }

// Describe renders a short textual summary of the attached conditioning
// images, suitable for inclusion in a generation prompt.
func (b *Bundle) Describe() string {
	parts := []string{"the original room photo"}
	if b.depth != nil {
		parts = append(parts, fmt.Sprintf("a depth map (distances %.1f-%.1fm) constraining spatial geometry",
			b.depth.MetricMin, b.depth.MetricMax))
	}
	if b.edge != nil {
		parts = append(parts, "an edge map constraining structural outlines")
	}
	if len(parts) == 1 {
		return "Reference image: " + parts[0] + "."
	}
	return "Reference images, in order: " + strings.Join(parts, "; ") + "."
}
