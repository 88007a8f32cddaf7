// Package analyzer provides the structural room analyzer collaborator.
// It sends the source photo to a vision-capable chat model and returns a
// semantic description of the room: fixtures, layout, condition, and
// elements that must be preserved in generated concepts.
//
// The analyzer is optional: callers may supply a pre-computed analysis, and
// any failure here downgrades the pipeline to generic prompts instead of
// failing the request.
package analyzer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"renovisio_backend/logging"
)

// Analyzer errors
var (
	ErrAnalysisFailed  = errors.New("analyzer: analysis request failed")
	ErrEmptyResponse   = errors.New("analyzer: model returned empty response")
	ErrInvalidResponse = errors.New("analyzer: model response could not be parsed")
)

// dataURI builds a base64 data URI for inline image content parts.
func dataURI(imageData []byte, mimeType string) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(imageData))
}

const systemPrompt = `You are an expert renovation surveyor. Given a photo of a room,
describe its structure for an image-generation pipeline. Respond with a JSON object:
{
  "summary": "one-paragraph description of the room",
  "fixtures": ["list of built-in fixtures and appliances"],
  "layout": "description of the spatial layout, openings, windows and doors",
  "condition": "apparent condition of surfaces and fixtures",
  "preserve": ["structural elements that any renovation must keep in place"]
}
Respond with JSON only, no markdown fences.`

// RoomAnalysis is the structured result of a room analysis. The pipeline
// treats it as opaque: it is injected into prompt building and persisted on
// the visualization record, never interpreted further.
type RoomAnalysis struct {
	Summary   string   `json:"summary"`
	Fixtures  []string `json:"fixtures,omitempty"`
	Layout    string   `json:"layout,omitempty"`
	Condition string   `json:"condition,omitempty"`
	Preserve  []string `json:"preserve,omitempty"`

	// Raw is the unparsed model output, kept for persistence.
	Raw string `json:"-"`
}

// Config holds analyzer configuration.
type Config struct {
	// Model is the vision-capable chat model to use
	Model string

	// MaxTokens bounds the analysis response length
	MaxTokens int

	// Temperature controls response variability (low for factual surveys)
	Temperature float32

	// Timeout is the per-call timeout
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults for room analysis.
func DefaultConfig() Config {
	return Config{
		Model:       "gpt-4o",
		MaxTokens:   800,
		Temperature: 0.2,
		Timeout:     45 * time.Second,
	}
}

// client is the subset of the OpenAI client used by the analyzer.
// Narrowed to an interface so tests can fake model behavior.
type client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Analyzer performs structural room analysis via a vision chat model.
type Analyzer struct {
	config Config
	client client
	logger *logging.Logger
}

// New creates an Analyzer. The logger must not be nil.
func New(config Config, c *openai.Client, logger *logging.Logger) *Analyzer {
	return newWithClient(config, c, logger)
}

func newWithClient(config Config, c client, logger *logging.Logger) *Analyzer {
	if config.Model == "" {
		config.Model = DefaultConfig().Model
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultConfig().MaxTokens
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}

	return &Analyzer{
		config: config,
		client: c,
		logger: logger.Named("analyzer"),
	}
}

// Analyze sends the source photo to the vision model and parses the
// structural description. imageData should be a bounded-size copy of the
// source photo (see vision.Thumbnail); roomTypeHint biases the survey.
func (a *Analyzer) Analyze(ctx context.Context, imageData []byte, mimeType, roomTypeHint string) (*RoomAnalysis, error) {
	start := time.Now()

	timeoutCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	userText := "Analyze this room photo."
	if roomTypeHint != "" {
		userText = fmt.Sprintf("Analyze this photo of a %s.", roomTypeHint)
	}

	request := openai.ChatCompletionRequest{
		Model: a.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: userText,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURI(imageData, mimeType),
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
		MaxTokens:   a.config.MaxTokens,
		Temperature: a.config.Temperature,
	}

	response, err := a.client.CreateChatCompletion(timeoutCtx, request)
	if err != nil {
		a.logger.Error("analysis request failed",
			zap.Error(err),
			logging.LatencyField(time.Since(start)))
		return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}

	if len(response.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	raw := response.Choices[0].Message.Content
	if raw == "" {
		return nil, ErrEmptyResponse
	}

	analysis, err := parseAnalysis(raw)
	if err != nil {
		a.logger.Error("analysis response unparseable",
			zap.Error(err),
			zap.Int("response_length", len(raw)))
		return nil, err
	}

	a.logger.Info("room analysis complete",
		zap.Int("fixture_count", len(analysis.Fixtures)),
		zap.Int("preserve_count", len(analysis.Preserve)),
		logging.LatencyField(time.Since(start)))

	return analysis, nil
}

// parseAnalysis extracts the RoomAnalysis from raw model output, tolerating
// markdown code fences the model sometimes adds despite instructions.
func parseAnalysis(raw string) (*RoomAnalysis, error) {
	content := strings.TrimSpace(raw)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var analysis RoomAnalysis
	if err := json.Unmarshal([]byte(content), &analysis); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if analysis.Summary == "" {
		return nil, fmt.Errorf("%w: missing summary", ErrInvalidResponse)
	}

	analysis.Raw = raw
	return &analysis, nil
}

// PromptText renders the analysis as prompt-ready text.
func (r *RoomAnalysis) PromptText() string {
	if r == nil {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(r.Summary)
	if r.Layout != "" {
		sb.WriteString(" Layout: ")
		sb.WriteString(r.Layout)
	}
	if len(r.Preserve) > 0 {
		sb.WriteString(" Must preserve: ")
		sb.WriteString(strings.Join(r.Preserve, ", "))
		sb.WriteString(".")
	}
	return sb.String()
}
