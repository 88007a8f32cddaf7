package generation

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"renovisio_backend/core"
)

// AzureProvider implements Provider against an Azure OpenAI deployment.
// Azure addresses models by deployment name rather than model identifier.
//
// Thread safety: AzureProvider is safe for concurrent use.
type AzureProvider struct {
	client     *openai.Client
	deployment string
}

// NewAzureProvider creates an Azure image generation provider from the
// application configuration.
//
// Returns an error if the API key or deployment name is missing, or the
// configured endpoint is not an Azure OpenAI endpoint.
func NewAzureProvider(cfg *core.Config) (*AzureProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("generation: config cannot be nil")
	}
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("generation: Azure API key is required; set OPENAI_API_KEY")
	}

	endpoint := cfg.AzureOpenAIEndpoint
	if endpoint == "" {
		endpoint = cfg.ImageLLMURL
	}
	if !IsAzureEndpoint(endpoint) {
		return nil, fmt.Errorf("generation: endpoint (%s) is not an Azure OpenAI endpoint", endpoint)
	}

	deployment := cfg.AzureOpenAIDeployment
	if deployment == "" {
		return nil, fmt.Errorf("generation: Azure deployment name is required; set AZURE_OPENAI_DEPLOYMENT")
	}

	clientConfig := openai.DefaultAzureConfig(cfg.OpenAIAPIKey, endpoint)
	if cfg.AzureOpenAIApiVersion != "" {
		clientConfig.APIVersion = cfg.AzureOpenAIApiVersion
	}
	clientConfig.HTTPClient = core.GetHTTPClient(cfg, cfg.AITimeout)

	return &AzureProvider{
		client:     openai.NewClientWithConfig(clientConfig),
		deployment: deployment,
	}, nil
}

// Deployment returns the configured Azure deployment name.
func (p *AzureProvider) Deployment() string {
	return p.deployment
}

// Generate creates one image from the prompt using the configured Azure
// deployment. Azure DALL-E deployments return temporary hosted URLs;
// gpt-image-1 deployments return inline base64 data.
func (p *AzureProvider) Generate(ctx context.Context, prompt string) (Result, error) {
	if prompt == "" {
		return Result{}, fmt.Errorf("generation: prompt cannot be empty")
	}

	req := openai.ImageRequest{
		Prompt: prompt,
		Model:  p.deployment,
		N:      1,
	}
	if isDalleModel(p.deployment) {
		req.ResponseFormat = openai.CreateImageResponseFormatURL
		req.Style = openai.CreateImageStyleVivid
	}

	response, err := p.client.CreateImage(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("generation: Azure image generation failed: %w", err)
	}

	if len(response.Data) == 0 {
		return Result{}, fmt.Errorf("generation: Azure returned empty data array")
	}
	data := response.Data[0]
	if data.B64JSON == "" && data.URL == "" {
		return Result{}, fmt.Errorf("generation: Azure returned neither image data nor URL")
	}

	return Result{URL: data.URL, B64JSON: data.B64JSON}, nil
}
