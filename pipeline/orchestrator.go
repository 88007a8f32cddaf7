package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"renovisio_backend/analyzer"
	"renovisio_backend/catalog"
	"renovisio_backend/conditioning"
	"renovisio_backend/core"
	"renovisio_backend/db"
	"renovisio_backend/generation"
	"renovisio_backend/logging"
	"renovisio_backend/metrics"
	"renovisio_backend/store"
	"renovisio_backend/vision"
)

// Default orchestrator parameters.
const (
	DefaultMaxConcepts       = 4
	DefaultTimeout           = 90 * time.Second
	DefaultStructureStrength = 0.85
	DefaultStyleStrength     = 0.7
)

// RoomAnalyzer is the structural analyzer collaborator.
type RoomAnalyzer interface {
	Analyze(ctx context.Context, imageData []byte, mimeType, roomTypeHint string) (*analyzer.RoomAnalysis, error)
}

// RecordWriter persists the final visualization aggregate.
type RecordWriter interface {
	InsertVisualization(ctx context.Context, record db.VisualizationRow) error
}

// Options are the immutable feature toggles and limits for an
// Orchestrator. They are fixed at construction; nothing reads the
// process environment mid-run.
type Options struct {
	// MaxConcepts clamps the requested concept count
	MaxConcepts int
	// Timeout is the overall wall-clock budget per request
	Timeout time.Duration
	// EnableRefinement routes concept 0 through the refinement loop
	EnableRefinement bool
	// StructureStrength and StyleStrength bias prompt wording, in [0,1]
	StructureStrength float64
	StyleStrength     float64
	// MaxImageBytes bounds the accepted source photo size
	MaxImageBytes int64
}

// DefaultOptions returns the standard pipeline limits.
func DefaultOptions() Options {
	return Options{
		MaxConcepts:       DefaultMaxConcepts,
		Timeout:           DefaultTimeout,
		EnableRefinement:  true,
		StructureStrength: DefaultStructureStrength,
		StyleStrength:     DefaultStyleStrength,
		MaxImageBytes:     15 << 20,
	}
}

// Deps are the orchestrator's collaborators. Catalog, Generator, Records
// and Logger are required. Analyzer, Extractors, Validator, Artifacts
// and Metrics are optional; missing ones degrade the pipeline rather
// than disable it: no analyzer means generic prompts, no artifact store
// means inline image references, no metrics sink means no accounting.
type Deps struct {
	Catalog    *catalog.Catalog
	Analyzer   RoomAnalyzer
	Extractors []conditioning.Extractor
	Generator  ConceptGenerator
	Validator  StructureValidator
	Artifacts  store.ArtifactStore
	Records    RecordWriter
	Metrics    metrics.Sink
	Logger     *logging.Logger
}

// Orchestrator runs the concept generation pipeline. One Generate call
// is one logical request with internal fan-out; the orchestrator holds
// no cross-request mutable state and is safe for concurrent use.
type Orchestrator struct {
	deps    Deps
	options Options
	refiner *RefinementController
	logger  *logging.Logger
}

// New creates an Orchestrator. Zero-valued options fall back to
// defaults.
func New(deps Deps, options Options) *Orchestrator {
	if options.MaxConcepts <= 0 {
		options.MaxConcepts = DefaultMaxConcepts
	}
	if options.Timeout <= 0 {
		options.Timeout = DefaultTimeout
	}
	if options.StructureStrength <= 0 {
		options.StructureStrength = DefaultStructureStrength
	}
	if options.StyleStrength <= 0 {
		options.StyleStrength = DefaultStyleStrength
	}
	if options.MaxImageBytes <= 0 {
		options.MaxImageBytes = DefaultOptions().MaxImageBytes
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NopSink{}
	}

	logger := deps.Logger.Named("pipeline")
	return &Orchestrator{
		deps:    deps,
		options: options,
		refiner: NewRefinementController(deps.Generator, deps.Validator, logger),
		logger:  logger,
	}
}

// conceptCandidate is one settled fan-out slot before persistence.
type conceptCandidate struct {
	Data     []byte
	MimeType string

	WasRefined bool
	Score      *float64
	Passed     *bool

	GenerationCalls int
	ValidationCalls int
}

// Generate runs the full pipeline for one request.
//
// Partial failure is tolerated: as long as one concept generation
// succeeds the request succeeds with the surviving subset. Image store
// writes fall back to inline references instead of failing. The
// aggregate record write is the only persistence step that can fail the
// request.
func (o *Orchestrator) Generate(ctx context.Context, req GenerationRequest) (*VisualizationRecord, error) {
	start := time.Now()
	correlationID := uuid.NewString()
	log := o.logger.With(logging.CorrelationField(correlationID))

	m := metrics.PipelineMetrics{
		CorrelationID:     correlationID,
		RequestedConcepts: req.ConceptCount,
	}
	defer func() {
		m.Timings.Total = time.Since(start)
		o.deps.Metrics.Record(m)
	}()

	// Input errors fail fast, before any external call.
	source, err := vision.ValidateSource(req.ImageData, o.options.MaxImageBytes)
	if err != nil {
		m.ErrorCode = core.ErrCodeInvalidImage
		m.ErrorMessage = err.Error()
		return nil, core.ErrInvalidImage("source image rejected", err)
	}
	mimeType := source.MimeType

	n := req.ConceptCount
	if n <= 0 {
		n = 1
	}
	if n > o.options.MaxConcepts {
		n = o.options.MaxConcepts
	}
	m.RequestedConcepts = n

	roomType := o.deps.Catalog.ResolveRoomType(req.RoomType)
	style := o.deps.Catalog.ResolveStyle(req.Style)
	m.RoomType = string(roomType)
	m.Style = string(style)

	runCtx, cancel := context.WithTimeout(ctx, o.options.Timeout)
	defer cancel()

	log.Info("pipeline run starting",
		zap.String("room_type", string(roomType)),
		zap.String("style", string(style)),
		zap.Int("concepts", n),
		zap.String("mode", req.Mode))

	// Step 1: persist the original, falling back to inline on any
	// store failure.
	originalRef := o.putWithFallback(runCtx, log, logging.StageStoreOriginal, req.ImageData, mimeType)

	// Step 2: resolve the structural analysis. Caller-supplied wins;
	// otherwise best-effort analyzer call, failure means no analysis.
	analysis := o.resolveAnalysis(runCtx, log, req, mimeType, &m)

	// Step 3: both conditioning extractors run concurrently, each on
	// its own timeout; the join keeps whichever succeeded.
	conditioningStart := time.Now()
	bundle := conditioning.Gather(runCtx, req.ImageData, mimeType, o.deps.Extractors...)
	m.Timings.Conditioning = time.Since(conditioningStart)
	m.ConditioningCalls = len(o.deps.Extractors)

	// Step 4: one resolved config for all concept tasks.
	cfg := o.buildConfig(req, roomType, style, analysis, bundle)

	// Steps 5-6: fan out N generations and wait for all to settle.
	generationStart := time.Now()
	results := o.generateConcepts(runCtx, req.ImageData, mimeType, cfg, n)
	m.Timings.Generation = time.Since(generationStart)

	for i, r := range results {
		m.GenerationCalls += r.Value.GenerationCalls
		m.ValidationCalls += r.Value.ValidationCalls
		if r.Value.WasRefined {
			m.RetryCount++
		}
		if i == 0 {
			m.ValidationScore = r.Value.Score
			m.ValidationPassed = r.Value.Passed
		}
	}

	// Step 7: partial-failure policy.
	successes := countSuccesses(results)
	m.GeneratedConcepts = successes
	if successes == 0 {
		return nil, o.failGeneration(log, results, runCtx, &m)
	}
	if successes < n {
		log.Warn("fewer concepts generated than requested",
			zap.Int("requested", n),
			zap.Int("generated", successes))
	}

	// Step 8: persist surviving concepts in fan-out order with the same
	// store-or-inline fallback as the original.
	concepts := o.persistConcepts(runCtx, log, results, roomType, style)

	// Step 9: the aggregate record write is the one persistence step
	// that fails the request, because an unpersisted record is unusable
	// to the rest of the system.
	record := &VisualizationRecord{
		ID:            uuid.NewString(),
		ShareToken:    uuid.NewString(),
		OriginalImage: originalRef,
		RoomType:      string(roomType),
		Style:         string(style),
		Constraints:   req.Constraints,
		Concepts:      concepts,
		TotalLatency:  time.Since(start),
		CreatedAt:     time.Now().UTC(),
	}
	if err := o.deps.Records.InsertVisualization(runCtx, toRow(record, req, analysis)); err != nil {
		m.ErrorCode = core.ErrCodeStorageError
		m.ErrorMessage = err.Error()
		log.Error("visualization record write failed",
			zap.String("stage", logging.StageRecordWrite),
			zap.Error(err))
		return nil, core.ErrStorage("failed to persist visualization record", err)
	}
	m.VisualizationID = record.ID

	// Step 10: respond immediately; the metrics write in the deferred
	// hook is queued, never awaited.
	log.Info("pipeline run complete",
		zap.Int("concepts", len(record.Concepts)),
		logging.LatencyField(record.TotalLatency))
	return record, nil
}

// resolveAnalysis returns the caller-supplied analysis, or invokes the
// analyzer when available. Analyzer failure downgrades to generic
// prompts, never fails the run.
func (o *Orchestrator) resolveAnalysis(ctx context.Context, log *logging.Logger, req GenerationRequest, mimeType string, m *metrics.PipelineMetrics) *analyzer.RoomAnalysis {
	if req.Analysis != nil {
		return req.Analysis
	}
	if o.deps.Analyzer == nil {
		return nil
	}

	analysisStart := time.Now()
	defer func() { m.Timings.Analysis = time.Since(analysisStart) }()
	m.AnalysisCalls++

	// A bounded copy keeps vision-model payloads small; fall back to
	// the full image when downscaling fails.
	imageData := req.ImageData
	analysisMime := mimeType
	if thumb, err := vision.Thumbnail(req.ImageData, vision.DefaultThumbnailEdge); err == nil {
		imageData = thumb
		analysisMime = "image/jpeg"
	}

	analysis, err := o.deps.Analyzer.Analyze(ctx, imageData, analysisMime, req.RoomType)
	if err != nil {
		log.Warn("structural analysis unavailable, continuing without",
			zap.String("stage", logging.StageAnalysis),
			zap.Error(err))
		return nil
	}
	return analysis
}

func (o *Orchestrator) buildConfig(req GenerationRequest, roomType catalog.RoomType, style catalog.Style, analysis *analyzer.RoomAnalysis, bundle *conditioning.Bundle) GenerationConfig {
	cfg := GenerationConfig{
		RoomType:          roomType,
		Style:             style,
		RoomPrompt:        o.deps.Catalog.RoomPrompt(roomType),
		StylePrompt:       o.deps.Catalog.StylePrompt(style),
		RoomOverride:      o.deps.Catalog.RoomTypeOverride(req.RoomType),
		StyleOverride:     o.deps.Catalog.StyleOverride(req.Style),
		Constraints:       req.Constraints,
		Analysis:          analysis,
		Bundle:            bundle,
		StructureStrength: o.options.StructureStrength,
		StyleStrength:     o.options.StyleStrength,
		HasDepthMap:       bundle.HasDepth(),
		HasEdgeMap:        bundle.HasEdge(),
	}
	if req.Intent != nil {
		cfg.Intent = *req.Intent
	}
	return cfg
}

// promptFor renders the deterministic prompt for one concept slot.
func promptFor(cfg GenerationConfig, index int, corrective string) string {
	return generation.BuildPrompt(generation.PromptInputs{
		RoomPrompt:        cfg.RoomPrompt,
		StylePrompt:       cfg.StylePrompt,
		RoomOverride:      cfg.RoomOverride,
		StyleOverride:     cfg.StyleOverride,
		Constraints:       cfg.Constraints,
		Analysis:          cfg.Analysis.PromptText(),
		DesiredChanges:    cfg.Intent.DesiredChanges,
		MustPreserve:      cfg.Intent.Preserve,
		Materials:         cfg.Intent.Materials,
		ConditioningNote:  cfg.Bundle.Describe(),
		Corrective:        corrective,
		StructureStrength: cfg.StructureStrength,
		StyleStrength:     cfg.StyleStrength,
		Variation:         index,
	})
}

// generateConcepts fans out N concept tasks and waits for all to settle.
// Slot 0 goes through the refinement controller when enabled; all other
// slots are single-shot. Tasks are independent: no shared cancellation
// beyond the run context, no shared mutable state.
func (o *Orchestrator) generateConcepts(ctx context.Context, original []byte, mimeType string, cfg GenerationConfig, n int) []settled[conceptCandidate] {
	refineFirst := o.options.EnableRefinement && o.deps.Validator != nil

	return settleAll(ctx, n, func(ctx context.Context, index int) (conceptCandidate, error) {
		if index == 0 && refineFirst {
			result, err := o.refiner.GenerateWithRefinement(ctx, original, mimeType,
				func(corrective string) string { return promptFor(cfg, index, corrective) }, index)
			return conceptCandidate{
				Data:            result.Data,
				MimeType:        result.MimeType,
				WasRefined:      result.WasRefined,
				Score:           result.Score,
				Passed:          result.Passed,
				GenerationCalls: result.GenerationCalls,
				ValidationCalls: result.ValidationCalls,
			}, err
		}

		data, candidateMime, err := o.deps.Generator.GenerateOne(ctx, promptFor(cfg, index, ""), index)
		if err != nil {
			return conceptCandidate{GenerationCalls: 1}, err
		}
		return conceptCandidate{Data: data, MimeType: candidateMime, GenerationCalls: 1}, nil
	})
}

// failGeneration builds the total-failure error: TIMEOUT when the run
// budget expired, otherwise GENERATION_FAILED carrying the first
// underlying error's message.
func (o *Orchestrator) failGeneration(log *logging.Logger, results []settled[conceptCandidate], runCtx context.Context, m *metrics.PipelineMetrics) error {
	firstErr := firstError(results)

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		m.ErrorCode = core.ErrCodeTimeout
		m.ErrorMessage = fmt.Sprintf("pipeline exceeded %s budget", o.options.Timeout)
		log.Error("pipeline timed out", zap.Duration("budget", o.options.Timeout))
		return core.ErrTimeout(m.ErrorMessage, firstErr)
	}

	message := "all concept generations failed"
	if firstErr != nil {
		message = firstErr.Error()
	}
	m.ErrorCode = core.ErrCodeGenerationFailed
	m.ErrorMessage = message
	log.Error("all concept generations failed", zap.Error(firstErr))
	return core.ErrGenerationFailed(message, firstErr)
}

// persistConcepts stores each surviving candidate, preserving fan-out
// slot order regardless of completion order.
func (o *Orchestrator) persistConcepts(ctx context.Context, log *logging.Logger, results []settled[conceptCandidate], roomType catalog.RoomType, style catalog.Style) []Concept {
	concepts := make([]Concept, 0, len(results))
	for i, r := range results {
		if r.Err != nil {
			continue
		}
		ref := o.putWithFallback(ctx, log.With(logging.ConceptField(i)),
			logging.StageStoreConcept, r.Value.Data, r.Value.MimeType)
		concepts = append(concepts, Concept{
			ID:          uuid.NewString(),
			Index:       i,
			Image:       ref,
			Description: describeConcept(roomType, style, i),
			CreatedAt:   time.Now().UTC(),
		})
	}
	return concepts
}

// putWithFallback writes an image to the artifact store, degrading to an
// inline reference on any failure. This policy applies uniformly to the
// original photo and every generated concept.
func (o *Orchestrator) putWithFallback(ctx context.Context, log *logging.Logger, stage string, data []byte, mimeType string) StoredReference {
	if o.deps.Artifacts == nil {
		return InlineReference(data, mimeType)
	}
	url, err := o.deps.Artifacts.Put(ctx, data, mimeType)
	if err != nil {
		log.Warn("artifact store write failed, carrying image inline",
			zap.String("stage", stage),
			zap.Error(err))
		return InlineReference(data, mimeType)
	}
	return DurableReference(url)
}

func describeConcept(roomType catalog.RoomType, style catalog.Style, index int) string {
	return fmt.Sprintf("Concept %d: %s %s renovation", index+1, style, roomType)
}

// toRow flattens the response record into its persistence form.
func toRow(record *VisualizationRecord, req GenerationRequest, analysis *analyzer.RoomAnalysis) db.VisualizationRow {
	row := db.VisualizationRow{
		ID:               record.ID,
		ShareToken:       record.ShareToken,
		OriginalImageURL: record.OriginalImage.URL(),
		OriginalInline:   record.OriginalImage.IsInline(),
		RoomType:         record.RoomType,
		Style:            record.Style,
		Constraints:      record.Constraints,
		Conversation:     req.Conversation,
		Source:           req.Mode,
		DeviceInfo:       req.DeviceInfo,
		TotalLatencyMS:   record.TotalLatency.Milliseconds(),
	}
	if analysis != nil {
		row.Analysis = analysis.Raw
	}
	for _, c := range record.Concepts {
		row.Concepts = append(row.Concepts, db.ConceptRow{
			ID:          c.ID,
			Index:       c.Index,
			ImageURL:    c.Image.URL(),
			ImageInline: c.Image.IsInline(),
			Description: c.Description,
		})
	}
	return row
}
