package generation

import (
	"context"
	"fmt"

	"renovisio_backend/core"
)

// Result is one generated image as returned by a provider: either a
// temporary hosted URL or inline base64 data, depending on what the
// backend supports. Exactly one field is set.
type Result struct {
	URL     string
	B64JSON string
}

// Provider is the interface for image generation backends. Each provider
// (OpenAI, Azure) implements this interface so backends are swappable.
//
// Generate creates one image from the given prompt. The context carries
// cancellation and timeout control.
type Provider interface {
	Generate(ctx context.Context, prompt string) (Result, error)
}

// NewProviderFromConfig selects and constructs the appropriate provider
// for the configured endpoints: Azure when an Azure endpoint is
// configured, standard OpenAI otherwise.
func NewProviderFromConfig(cfg *core.Config) (Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("generation: config cannot be nil")
	}

	if cfg.AzureOpenAIEndpoint != "" && IsAzureEndpoint(cfg.AzureOpenAIEndpoint) {
		return NewAzureProvider(cfg)
	}
	if cfg.ImageLLMURL != "" && IsAzureEndpoint(cfg.ImageLLMURL) {
		return NewAzureProvider(cfg)
	}
	return NewOpenAIProvider(cfg)
}
