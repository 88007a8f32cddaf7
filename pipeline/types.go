// Package pipeline orchestrates visual concept generation: it turns a
// source room photo plus a style request into a bounded set of generated
// renovation concepts, tolerating failure of any individual stage.
package pipeline

import (
	"encoding/base64"
	"fmt"
	"time"

	"renovisio_backend/analyzer"
	"renovisio_backend/catalog"
	"renovisio_backend/conditioning"
)

// Request modes.
const (
	ModeQuick        = "quick"
	ModeConversation = "conversation"
	ModeStreamlined  = "streamlined"
)

// DesignIntent captures what the user wants changed, kept and used.
type DesignIntent struct {
	DesiredChanges []string
	Preserve       []string
	Materials      []string
}

// GenerationRequest is the immutable input to one pipeline run. It is
// created once per call and never mutated.
type GenerationRequest struct {
	// ImageData is the source photo bytes
	ImageData []byte
	// MimeType of the source photo; sniffed when empty
	MimeType string

	// RoomType and Style accept catalog values or free text; free text
	// maps to a safe default for storage
	RoomType string
	Style    string

	// Constraints is free-text guidance from the user
	Constraints string

	// Analysis is an optional pre-computed structural analysis; when
	// nil the pipeline invokes the analyzer itself
	Analysis *analyzer.RoomAnalysis

	// Intent is the optional design-intent record
	Intent *DesignIntent

	// ConceptCount is the requested number of concepts, clamped to the
	// configured maximum
	ConceptCount int

	// Mode tags the request origin (quick, conversation, streamlined)
	Mode string

	// Conversation is an opaque context blob persisted with the record
	Conversation string

	// DeviceInfo is client metadata persisted with the record
	DeviceInfo string
}

// GenerationConfig is the resolved parameter set handed to generation.
// Derived once per request and read-only thereafter.
type GenerationConfig struct {
	RoomType catalog.RoomType
	Style    catalog.Style

	RoomPrompt  string
	StylePrompt string
	Constraints string

	// RoomOverride and StyleOverride carry free-text vocabulary that
	// matched no catalog entry; prompts prefer them over the resolved
	// catalog fragments, storage keeps the safe enums
	RoomOverride  string
	StyleOverride string

	Analysis *analyzer.RoomAnalysis
	Intent   DesignIntent
	Bundle   *conditioning.Bundle

	StructureStrength float64
	StyleStrength     float64

	HasDepthMap bool
	HasEdgeMap  bool
}

// StoredReference is where an image ended up: durably in the artifact
// store, or inline in the record when the store write failed.
type StoredReference struct {
	url  string
	data []byte
	mime string
}

// DurableReference references an artifact by its stored URL.
func DurableReference(url string) StoredReference {
	return StoredReference{url: url}
}

// InlineReference carries the image bytes directly, used when the
// artifact store is unavailable. Losing an already-generated image is
// worse than serving it embedded.
func InlineReference(data []byte, mimeType string) StoredReference {
	return StoredReference{data: data, mime: mimeType}
}

// IsInline reports whether the reference carries inline data.
func (r StoredReference) IsInline() bool { return r.url == "" }

// URL returns the public form of the reference: the stored URL, or a
// data URI for inline references.
func (r StoredReference) URL() string {
	if r.url != "" {
		return r.url
	}
	return fmt.Sprintf("data:%s;base64,%s", r.mime, base64.StdEncoding.EncodeToString(r.data))
}

// Data returns the inline bytes, nil for durable references.
func (r StoredReference) Data() []byte { return r.data }

// Concept is one generated output. Concepts are never updated after
// creation; regeneration produces a new Concept.
type Concept struct {
	ID          string
	Index       int
	Image       StoredReference
	Description string
	CreatedAt   time.Time
}

// VisualizationRecord is the persisted aggregate returned to the caller.
// It is created exactly once per successful request, always with at
// least one concept.
type VisualizationRecord struct {
	ID            string
	ShareToken    string
	OriginalImage StoredReference
	RoomType      string
	Style         string
	Constraints   string
	Concepts      []Concept
	TotalLatency  time.Duration
	CreatedAt     time.Time
}
