// Package validator scores how well a generated concept preserves the
// structural layout of the original room photo. The score feeds the
// refinement loop only; an unreachable validator is treated as passing so
// validation never blocks concept delivery.
package validator

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

// PassThreshold is the score at or above which a candidate counts as
// structurally faithful.
const PassThreshold = 0.7

// Validator errors
var (
	ErrValidationFailed = errors.New("validator: scoring request failed")
	ErrInvalidResponse  = errors.New("validator: model response could not be parsed")
)

// Outcome is one scoring result. Feedback describes the worst structural
// deviations and is injected as corrective guidance when regenerating.
type Outcome struct {
	Score    float64
	Passed   bool
	Feedback string
}

const systemPrompt = `You compare two photos of the same room: the original and a
proposed renovation concept. Judge only structural fidelity: wall positions, window
and door placement, ceiling lines, and overall geometry. Ignore furnishings, colors
and materials. Respond with a JSON object:
{
  "score": 0.0 to 1.0,
  "deviations": "short description of the worst structural deviations, or empty"
}
Respond with JSON only, no markdown fences.`

// Config holds validator configuration.
type Config struct {
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

// DefaultConfig returns sensible defaults for structure scoring.
func DefaultConfig() Config {
	return Config{
		Model:       "gpt-4o",
		MaxTokens:   300,
		Temperature: 0,
		Timeout:     30 * time.Second,
	}
}

type client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Validator scores structural preservation via a vision chat model.
type Validator struct {
	config Config
	client client
	logger *logging.Logger
}

// New creates a Validator. The logger must not be nil.
func New(config Config, c *openai.Client, logger *logging.Logger) *Validator {
	return newWithClient(config, c, logger)
}

func newWithClient(config Config, c client, logger *logging.Logger) *Validator {
	if config.Model == "" {
		config.Model = DefaultConfig().Model
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultConfig().MaxTokens
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	return &Validator{
		config: config,
		client: c,
		logger: logger.Named("validator"),
	}
}

func dataURI(imageData []byte, mimeType string) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(imageData))
}

// Score compares the candidate against the original and returns the
// structural-fidelity outcome.
func (v *Validator) Score(ctx context.Context, original, candidate []byte, mimeType string) (Outcome, error) {
	start := time.Now()

	timeoutCtx, cancel := context.WithTimeout(ctx, v.config.Timeout)
	defer cancel()

	request := openai.ChatCompletionRequest{
		Model: v.config.Model,
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
						Text: "First image is the original room, second is the renovation concept.",
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURI(original, mimeType),
							Detail: openai.ImageURLDetailLow,
						},
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURI(candidate, mimeType),
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
		MaxTokens:   v.config.MaxTokens,
		Temperature: v.config.Temperature,
	}

	response, err := v.client.CreateChatCompletion(timeoutCtx, request)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	if len(response.Choices) == 0 || response.Choices[0].Message.Content == "" {
		return Outcome{}, fmt.Errorf("%w: empty response", ErrValidationFailed)
	}

	outcome, err := parseOutcome(response.Choices[0].Message.Content)
	if err != nil {
		return Outcome{}, err
	}

	v.logger.Info("structure validation scored",
		logging.ScoreField(outcome.Score),
		zap.Bool("passed", outcome.Passed),
		logging.LatencyField(time.Since(start)))
	return outcome, nil
}

func parseOutcome(raw string) (Outcome, error) {
	content := strings.TrimSpace(raw)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var parsed struct {
		Score      float64 `json:"score"`
		Deviations string  `json:"deviations"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if parsed.Score < 0 || parsed.Score > 1 {
		return Outcome{}, fmt.Errorf("%w: score %v out of range", ErrInvalidResponse, parsed.Score)
	}

	return Outcome{
		Score:    parsed.Score,
		Passed:   parsed.Score >= PassThreshold,
		Feedback: parsed.Deviations,
	}, nil
}
