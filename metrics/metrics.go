// Package metrics accumulates per-request pipeline measurements and
// routes them to persistence without ever blocking or failing the
// request that produced them.
package metrics

import (
	"time"

	"go.uber.org/zap"

	"renovisio_backend/db"
	"renovisio_backend/logging"
)

// Per-call cost estimates in USD. These are coarse accounting figures
// for reporting, not billing.
const (
	CostPerAnalysisCall     = 0.01
	CostPerGenerationCall   = 0.04
	CostPerValidationCall   = 0.005
	CostPerConditioningCall = 0.002
)

// StageTimings holds wall-clock durations per pipeline stage.
type StageTimings struct {
	Analysis     time.Duration
	Conditioning time.Duration
	Generation   time.Duration
	Total        time.Duration
}

// PipelineMetrics is the per-request measurement record. One is built
// during each pipeline run and recorded fire-and-forget at the end.
type PipelineMetrics struct {
	CorrelationID   string
	VisualizationID string
	RoomType        string
	Style           string

	RequestedConcepts int
	GeneratedConcepts int
	RetryCount        int

	ValidationScore  *float64
	ValidationPassed *bool

	AnalysisCalls     int
	GenerationCalls   int
	ValidationCalls   int
	ConditioningCalls int

	Timings StageTimings

	ErrorCode    string
	ErrorMessage string
}

// EstimatedCost returns the estimated spend for the request in USD.
func (m *PipelineMetrics) EstimatedCost() float64 {
	return float64(m.AnalysisCalls)*CostPerAnalysisCall +
		float64(m.GenerationCalls)*CostPerGenerationCall +
		float64(m.ValidationCalls)*CostPerValidationCall +
		float64(m.ConditioningCalls)*CostPerConditioningCall
}

// Failed reports whether the request ended in an error.
func (m *PipelineMetrics) Failed() bool {
	return m.ErrorCode != ""
}

// ToRow converts the metrics to their persistence form.
func (m *PipelineMetrics) ToRow() db.MetricsRow {
	return db.MetricsRow{
		CorrelationID:     m.CorrelationID,
		VisualizationID:   m.VisualizationID,
		RoomType:          m.RoomType,
		Style:             m.Style,
		RequestedConcepts: m.RequestedConcepts,
		GeneratedConcepts: m.GeneratedConcepts,
		RetryCount:        m.RetryCount,
		ValidationScore:   m.ValidationScore,
		ValidationPassed:  m.ValidationPassed,
		AnalysisMS:        m.Timings.Analysis.Milliseconds(),
		ConditioningMS:    m.Timings.Conditioning.Milliseconds(),
		GenerationMS:      m.Timings.Generation.Milliseconds(),
		TotalMS:           m.Timings.Total.Milliseconds(),
		EstimatedCostUSD:  m.EstimatedCost(),
		Error:             m.Failed(),
		ErrorCode:         m.ErrorCode,
		ErrorMessage:      m.ErrorMessage,
	}
}

// Sink accepts finished metrics. Record must never block on I/O and
// must never surface an error to the caller.
type Sink interface {
	Record(m PipelineMetrics)
}

// Recorder is the production Sink: it queues rows on the repository's
// async writer and logs drops. A failed or dropped write is invisible to
// the request that produced the metrics.
type Recorder struct {
	repo   *db.Repository
	logger *logging.Logger
}

// NewRecorder creates a Recorder. The logger must not be nil.
func NewRecorder(repo *db.Repository, logger *logging.Logger) *Recorder {
	return &Recorder{
		repo:   repo,
		logger: logger.Named("metrics"),
	}
}

// Record queues the metrics row for async persistence.
func (r *Recorder) Record(m PipelineMetrics) {
	if r.repo == nil {
		return
	}
	if !r.repo.QueueMetrics(m.ToRow()) {
		r.logger.Warn("metrics write dropped",
			zap.String("correlation_id", m.CorrelationID),
			zap.String("error_code", m.ErrorCode))
	}
}

// NopSink discards all metrics. Used when metrics persistence is
// disabled.
type NopSink struct{}

func (NopSink) Record(PipelineMetrics) {}
