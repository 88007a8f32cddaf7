package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"renovisio_backend/core"
)

// OpenAIProvider implements Provider against the standard OpenAI image
// API.
//
// Thread safety: OpenAIProvider is safe for concurrent use; the
// underlying client handles connection pooling.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider creates an OpenAI image generation provider from the
// application configuration.
//
// Returns an error if the API key is missing or the configured endpoint
// is a local endpoint, which does not support image generation.
func NewOpenAIProvider(cfg *core.Config) (*OpenAIProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("generation: config cannot be nil")
	}
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("generation: OpenAI API key is required for image generation")
	}

	endpoint := cfg.ImageLLMURL
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1"
	}
	if IsLocalEndpoint(endpoint) {
		return nil, fmt.Errorf("generation: local endpoint (%s) does not support image generation; "+
			"configure IMAGE_LLM_URL to use OpenAI or Azure", endpoint)
	}

	clientConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
	clientConfig.BaseURL = endpoint
	clientConfig.HTTPClient = core.GetHTTPClient(cfg, cfg.AITimeout)

	model := cfg.OpenAIImageModel
	if model == "" {
		model = "gpt-image-1"
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}, nil
}

// Generate creates one image from the prompt.
//
// Response handling differs by model: gpt-image-1 always returns inline
// base64 data and rejects the response_format parameter, while DALL-E
// models must be asked for b64_json explicitly.
func (p *OpenAIProvider) Generate(ctx context.Context, prompt string) (Result, error) {
	if prompt == "" {
		return Result{}, fmt.Errorf("generation: prompt cannot be empty")
	}

	req := openai.ImageRequest{
		Prompt: prompt,
		Model:  p.model,
		N:      1,
	}
	if isDalleModel(p.model) {
		req.ResponseFormat = openai.CreateImageResponseFormatB64JSON
		req.Style = openai.CreateImageStyleVivid
	}

	response, err := p.client.CreateImage(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("generation: OpenAI image generation failed: %w", err)
	}

	if len(response.Data) == 0 {
		return Result{}, fmt.Errorf("generation: OpenAI returned empty data array")
	}
	data := response.Data[0]
	if data.B64JSON == "" && data.URL == "" {
		return Result{}, fmt.Errorf("generation: OpenAI returned neither image data nor URL")
	}

	return Result{URL: data.URL, B64JSON: data.B64JSON}, nil
}

// isDalleModel reports whether the model name indicates a DALL-E model,
// which uses the legacy style and response_format parameters.
func isDalleModel(model string) bool {
	lower := strings.ToLower(model)
	return strings.Contains(lower, "dall-e") ||
		strings.Contains(lower, "dalle")
}
