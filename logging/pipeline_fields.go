package logging

import (
	"time"

	"go.uber.org/zap"
)

// Stage names used in pipeline log entries. Keeping these as constants makes
// log queries for a given stage stable across the codebase.
const (
	StageStoreOriginal = "store_original"
	StageAnalysis      = "analysis"
	StageDepth         = "depth"
	StageEdge          = "edge"
	StageGeneration    = "generation"
	StageValidation    = "validation"
	StageStoreConcept  = "store_concept"
	StageRecordWrite   = "record_write"
	StageMetrics       = "metrics"
)

// StageField tags a log entry with the pipeline stage it belongs to.
func StageField(stage string) zap.Field {
	return zap.String("stage", stage)
}

// ConceptField tags a log entry with the concept fan-out index it belongs to.
func ConceptField(index int) zap.Field {
	return zap.Int("concept_index", index)
}

// CorrelationField tags a log entry with the per-request correlation ID.
func CorrelationField(id string) zap.Field {
	return zap.String("correlation_id", id)
}

// LatencyField records a stage latency in milliseconds.
func LatencyField(d time.Duration) zap.Field {
	return zap.Int64("latency_ms", d.Milliseconds())
}

// ScoreField records a structure validation score.
func ScoreField(score float64) zap.Field {
	return zap.Float64("validation_score", score)
}
