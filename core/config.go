package core

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config holds all configuration values for the visualization backend.
// It is loaded once at startup from environment variables and treated as
// immutable afterwards; components receive the values they need through
// their constructors rather than reading the environment themselves.
type Config struct {
	// API Keys
	OpenAIAPIKey string

	// Model API Configuration
	ImageLLMURL       string // Endpoint for image generation (default: OpenAI)
	VisionLLMURL      string // Endpoint for vision analysis/validation (default: OpenAI)
	OpenAIImageModel  string // Image generation model identifier
	OpenAIVisionModel string // Vision model for analysis and structure validation

	// Azure OpenAI Configuration (optional cloud alternative)
	AzureOpenAIEndpoint   string // e.g. https://your-resource.openai.azure.com/
	AzureOpenAIDeployment string // Azure deployment name for image generation
	AzureOpenAIApiVersion string // Azure API version

	// Conditioning estimator endpoints (optional; empty disables the feature)
	DepthEstimatorURL string
	EdgeEstimatorURL  string
	DepthTimeout      time.Duration
	EdgeTimeout       time.Duration

	// Feature toggles
	EnableDepth      bool
	EnableEdge       bool
	EnableRefinement bool
	EnableAnalyzer   bool

	// Pipeline limits
	MaxConcepts     int           // Upper bound on concepts per request
	PipelineTimeout time.Duration // Overall wall-clock budget per request
	AITimeout       time.Duration // Per-call timeout for model requests
	MaxImageBytes   int64         // Upper bound on uploaded source image size

	// Generation strengths, both in [0,1]
	StructureStrength float64 // How strongly generation preserves room geometry
	StyleStrength     float64 // How strongly the chosen style is applied

	// Artifact storage
	ArtifactDir     string // Directory for stored images
	ArtifactBaseURL string // Public base URL artifacts are served under

	// Database
	DatabasePath   string
	MigrationsPath string // e.g. file://db/migrations

	// Metrics retention
	MetricsRetentionDays int

	// Server
	Port                 int
	AllowSelfSignedCerts bool

	// Style catalog override file (optional YAML)
	StyleCatalogPath string
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. Only OPENAI_API_KEY is strictly required; everything else
// degrades to a default or disables an optional feature.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		OpenAIAPIKey: GetEnvOrDefault("OPENAI_API_KEY", ""),

		ImageLLMURL:       GetEnvOrDefault("IMAGE_LLM_URL", "https://api.openai.com/v1"),
		VisionLLMURL:      GetEnvOrDefault("VISION_LLM_URL", "https://api.openai.com/v1"),
		OpenAIImageModel:  GetEnvOrDefault("OPENAI_IMAGE_MODEL", "gpt-image-1"),
		OpenAIVisionModel: GetEnvOrDefault("OPENAI_VISION_MODEL", "gpt-4o"),

		AzureOpenAIEndpoint:   GetEnvOrDefault("AZURE_OPENAI_ENDPOINT", ""),
		AzureOpenAIDeployment: GetEnvOrDefault("AZURE_OPENAI_DEPLOYMENT", ""),
		AzureOpenAIApiVersion: GetEnvOrDefault("AZURE_OPENAI_API_VERSION", "2024-02-15-preview"),

		DepthEstimatorURL: GetEnvOrDefault("DEPTH_ESTIMATOR_URL", ""),
		EdgeEstimatorURL:  GetEnvOrDefault("EDGE_ESTIMATOR_URL", ""),
		DepthTimeout:      ParseDurationEnv("DEPTH_TIMEOUT_SECONDS", 20),
		EdgeTimeout:       ParseDurationEnv("EDGE_TIMEOUT_SECONDS", 20),

		EnableDepth:      ParseBoolEnv("ENABLE_DEPTH", true),
		EnableEdge:       ParseBoolEnv("ENABLE_EDGE", true),
		EnableRefinement: ParseBoolEnv("ENABLE_REFINEMENT", true),
		EnableAnalyzer:   ParseBoolEnv("ENABLE_ANALYZER", true),

		MaxConcepts:     ParseIntEnv("MAX_CONCEPTS", 4),
		PipelineTimeout: ParseDurationEnv("PIPELINE_TIMEOUT_SECONDS", 90),
		AITimeout:       ParseDurationEnv("AI_TIMEOUT_SECONDS", 60),
		MaxImageBytes:   ParseInt64Env("MAX_IMAGE_BYTES", 15*1024*1024),

		StructureStrength: ParseFloat64Env("STRUCTURE_STRENGTH", 0.85),
		StyleStrength:     ParseFloat64Env("STYLE_STRENGTH", 0.7),

		ArtifactDir:     GetEnvOrDefault("ARTIFACT_DIR", "artifacts"),
		ArtifactBaseURL: GetEnvOrDefault("ARTIFACT_BASE_URL", "http://localhost:8080/artifacts"),

		DatabasePath:   GetEnvOrDefault("DATABASE_PATH", "renovisio.sqlite"),
		MigrationsPath: GetEnvOrDefault("MIGRATIONS_PATH", "file://db/migrations"),

		MetricsRetentionDays: ParseIntEnv("METRICS_RETENTION_DAYS", 90),

		Port:                 ParseIntEnv("PORT", 8080),
		AllowSelfSignedCerts: ParseBoolEnv("ALLOW_SELF_SIGNED_CERTS", false),

		StyleCatalogPath: GetEnvOrDefault("STYLE_CATALOG_PATH", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for values that would make the pipeline
// unusable. Optional collaborators (depth, edge, analyzer) are not validated
// here; an empty endpoint simply disables the feature.
func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" && c.AzureOpenAIEndpoint == "" {
		return ErrMissingConfig("OPENAI_API_KEY")
	}
	if c.MaxConcepts < 1 {
		return ErrInvalidConfig("MAX_CONCEPTS", "must be at least 1")
	}
	if c.PipelineTimeout <= 0 {
		return ErrInvalidConfig("PIPELINE_TIMEOUT_SECONDS", "must be positive")
	}
	if c.StructureStrength < 0 || c.StructureStrength > 1 {
		return ErrInvalidConfig("STRUCTURE_STRENGTH", "must be in [0,1]")
	}
	if c.StyleStrength < 0 || c.StyleStrength > 1 {
		return ErrInvalidConfig("STYLE_STRENGTH", "must be in [0,1]")
	}
	for _, ep := range []struct{ name, value string }{
		{"IMAGE_LLM_URL", c.ImageLLMURL},
		{"VISION_LLM_URL", c.VisionLLMURL},
	} {
		if ep.value == "" {
			continue
		}
		if _, err := url.ParseRequestURI(ep.value); err != nil {
			return ErrInvalidConfig(ep.name, fmt.Sprintf("not a valid URL: %v", err))
		}
	}
	if c.ArtifactBaseURL != "" && !strings.HasPrefix(c.ArtifactBaseURL, "http") {
		return ErrInvalidConfig("ARTIFACT_BASE_URL", "must be an http(s) URL")
	}
	return nil
}

// DepthEnabled reports whether depth conditioning is both toggled on and
// has an estimator endpoint configured.
func (c *Config) DepthEnabled() bool {
	return c.EnableDepth && c.DepthEstimatorURL != ""
}

// EdgeEnabled reports whether edge conditioning is both toggled on and
// has an estimator endpoint configured.
func (c *Config) EdgeEnabled() bool {
	return c.EnableEdge && c.EdgeEstimatorURL != ""
}

// GetHTTPClient returns an HTTP client configured with the given timeout
// and TLS settings from the configuration.
func GetHTTPClient(cfg *Config, timeout time.Duration) *http.Client {
	client := &http.Client{
		Timeout: timeout,
	}

	if cfg.AllowSelfSignedCerts {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return client
}

// GetDefaultHTTPClient returns an HTTP client with default timeout (30s)
// configured with TLS settings.
func GetDefaultHTTPClient(cfg *Config) *http.Client {
	return GetHTTPClient(cfg, 30*time.Second)
}
