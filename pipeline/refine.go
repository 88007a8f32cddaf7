package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"renovisio_backend/logging"
	"renovisio_backend/validator"
)

// maxGenerationCalls bounds the refinement loop: one initial generation
// plus at most one corrective retry. Worst-case latency for the refined
// concept is 2x a single generation call.
const maxGenerationCalls = 2

// ConceptGenerator produces one candidate image for a prompt.
type ConceptGenerator interface {
	GenerateOne(ctx context.Context, prompt string, index int) ([]byte, string, error)
}

// StructureValidator scores a candidate's structural fidelity against
// the original photo.
type StructureValidator interface {
	Score(ctx context.Context, original, candidate []byte, mimeType string) (validator.Outcome, error)
}

// RefinementResult is one refined candidate plus the accounting the
// metrics record needs.
type RefinementResult struct {
	Data     []byte
	MimeType string

	WasRefined bool
	Score      *float64
	Passed     *bool

	GenerationCalls int
	ValidationCalls int
}

// RefinementController wraps the primary concept generation in a
// quality-gated retry: generate, score, and regenerate once with
// corrective guidance when the score falls below the pass threshold.
type RefinementController struct {
	generator ConceptGenerator
	validator StructureValidator
	logger    *logging.Logger
}

// NewRefinementController creates a controller. validator may be nil, in
// which case every candidate is accepted as-is.
func NewRefinementController(generator ConceptGenerator, v StructureValidator, logger *logging.Logger) *RefinementController {
	return &RefinementController{
		generator: generator,
		validator: v,
		logger:    logger.Named("refinement"),
	}
}

// GenerateWithRefinement produces the concept for the given slot.
// promptFor renders the generation prompt, optionally injecting
// corrective guidance from a failed validation.
//
// The candidate is scored against the original photo; at or above the
// pass threshold it is returned immediately. Below threshold, one
// regeneration with corrective guidance is issued and that second
// candidate is returned regardless of quality. An unreachable validator
// fails open: the first candidate is treated as passing, because
// validation is an enhancement, not a gate that may block delivery.
func (rc *RefinementController) GenerateWithRefinement(
	ctx context.Context,
	original []byte,
	mimeType string,
	promptFor func(corrective string) string,
	index int,
) (RefinementResult, error) {
	result := RefinementResult{}
	log := rc.logger.With(logging.ConceptField(index))

	data, candidateMime, err := rc.generator.GenerateOne(ctx, promptFor(""), index)
	result.GenerationCalls++
	if err != nil {
		return result, err
	}
	result.Data = data
	result.MimeType = candidateMime

	if rc.validator == nil {
		return result, nil
	}

	start := time.Now()
	outcome, err := rc.validator.Score(ctx, original, data, mimeType)
	result.ValidationCalls++
	if err != nil {
		log.Warn("structure validation unavailable, accepting candidate",
			zap.Error(err))
		return result, nil
	}
	result.Score = &outcome.Score
	result.Passed = &outcome.Passed

	if outcome.Passed {
		return result, nil
	}

	corrective := outcome.Feedback
	if corrective == "" {
		corrective = "Preserve the original room's wall, window and door positions exactly."
	}
	log.Info("validation below threshold, regenerating with corrective guidance",
		logging.ScoreField(outcome.Score),
		logging.LatencyField(time.Since(start)))

	refined, refinedMime, err := rc.generator.GenerateOne(ctx, promptFor(corrective), index)
	result.GenerationCalls++
	if err != nil {
		// The first candidate survives when the retry fails.
		log.Warn("corrective regeneration failed, keeping first candidate",
			zap.Error(err))
		return result, nil
	}

	result.Data = refined
	result.MimeType = refinedMime
	result.WasRefined = true
	return result, nil
}
