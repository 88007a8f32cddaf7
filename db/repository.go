package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository errors
var (
	ErrNotFound        = errors.New("db: record not found")
	ErrNoConcepts      = errors.New("db: visualization requires at least one concept")
	ErrConceptMismatch = errors.New("db: concept does not belong to visualization")
)

// sqliteTimeLayout is the space-separated text form SQLite's own
// datetime() produces. The modernc driver stores CURRENT_TIMESTAMP as
// RFC3339, so parseTimestamp tries that first.
const sqliteTimeLayout = "2006-01-02 15:04:05"

// parseTimestamp reads a stored created_at value in either text form.
func parseTimestamp(value string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	ts, err := time.Parse(sqliteTimeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q: %w", value, err)
	}
	return ts, nil
}

// VisualizationRow is one row in the visualizations table plus its
// ordered concepts.
type VisualizationRow struct {
	ID                string    // UUID primary key
	ShareToken        string    // Unguessable public lookup token
	OriginalImageURL  string    // Durable URL or inline data URI of the source photo
	OriginalInline    bool      // True when the original fell back to inline data
	RoomType          string    // Resolved room type
	Style             string    // Resolved style
	Constraints       string    // Free-text user constraints
	Analysis          string    // Raw structural analysis, if any
	Conversation      string    // Conversation context blob, if any
	Source            string    // Request origin tag (quick, conversation, streamlined)
	DeviceInfo        string    // Client device metadata
	TotalLatencyMS    int64     // End-to-end pipeline latency
	Notes             string    // Admin notes, mutated after creation
	FeasibilityScore  *float64  // Admin feasibility assessment, nil until set
	SelectedConceptID string    // Admin-selected concept, empty until set
	CreatedAt         time.Time // Timestamp when record was created

	Concepts []ConceptRow
}

// ConceptRow is one row in the concepts table.
type ConceptRow struct {
	ID              string    // UUID primary key
	VisualizationID string    // Owning visualization
	Index           int       // Fan-out slot, preserved from generation order
	ImageURL        string    // Durable URL or inline data URI
	ImageInline     bool      // True when the image fell back to inline data
	Description     string    // Human-readable concept description
	CreatedAt       time.Time // Timestamp when record was created
}

// MetricsRow is one row in the pipeline_metrics table.
type MetricsRow struct {
	ID                int64
	CorrelationID     string
	VisualizationID   string // Empty when the request failed before persistence
	RoomType          string
	Style             string
	RequestedConcepts int
	GeneratedConcepts int
	RetryCount        int
	ValidationScore   *float64
	ValidationPassed  *bool
	AnalysisMS        int64
	ConditioningMS    int64
	GenerationMS      int64
	TotalMS           int64
	EstimatedCostUSD  float64
	Error             bool
	ErrorCode         string
	ErrorMessage      string
	CreatedAt         time.Time
}

// Repository provides typed access to the visualization tables. Reads
// are synchronous; metrics writes can be routed through an AsyncWriter.
type Repository struct {
	db          *Database
	asyncWriter *AsyncWriter
}

// NewRepository creates a Repository. asyncWriter is optional; when nil,
// metrics writes are synchronous.
func NewRepository(db *Database, asyncWriter *AsyncWriter) *Repository {
	return &Repository{
		db:          db,
		asyncWriter: asyncWriter,
	}
}

// InsertVisualization writes the record and its concepts in one
// transaction. A record with no concepts is rejected.
func (r *Repository) InsertVisualization(ctx context.Context, record VisualizationRow) error {
	if r.db == nil || r.db.DB() == nil {
		return fmt.Errorf("database connection is nil")
	}
	if len(record.Concepts) == 0 {
		return ErrNoConcepts
	}

	tx, err := r.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO visualizations (
			id, share_token, original_image_url, original_inline,
			room_type, style, constraints, analysis, conversation,
			source, device_info, total_latency_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.ShareToken,
		record.OriginalImageURL,
		boolToInt(record.OriginalInline),
		record.RoomType,
		record.Style,
		record.Constraints,
		nullString(record.Analysis),
		nullString(record.Conversation),
		record.Source,
		record.DeviceInfo,
		record.TotalLatencyMS,
	)
	if err != nil {
		return fmt.Errorf("failed to insert visualization: %w", err)
	}

	for _, c := range record.Concepts {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO concepts (
				id, visualization_id, concept_index, image_url, image_inline, description
			) VALUES (?, ?, ?, ?, ?, ?)`,
			c.ID,
			record.ID,
			c.Index,
			c.ImageURL,
			boolToInt(c.ImageInline),
			c.Description,
		)
		if err != nil {
			return fmt.Errorf("failed to insert concept %d: %w", c.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit visualization: %w", err)
	}
	return nil
}

// GetVisualization retrieves a record by ID with its concepts in
// generation order. Returns ErrNotFound for unknown IDs.
func (r *Repository) GetVisualization(ctx context.Context, id string) (*VisualizationRow, error) {
	return r.getVisualization(ctx, "id = ?", id)
}

// GetVisualizationByShareToken retrieves a record by its public share
// token. Returns ErrNotFound for unknown tokens.
func (r *Repository) GetVisualizationByShareToken(ctx context.Context, token string) (*VisualizationRow, error) {
	return r.getVisualization(ctx, "share_token = ?", token)
}

func (r *Repository) getVisualization(ctx context.Context, where string, arg interface{}) (*VisualizationRow, error) {
	if r.db == nil || r.db.DB() == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	query := `
		SELECT id, share_token, original_image_url, original_inline,
			   room_type, style, constraints,
			   COALESCE(analysis, ''), COALESCE(conversation, ''),
			   source, device_info, total_latency_ms, notes,
			   feasibility_score, COALESCE(selected_concept_id, ''),
			   created_at
		FROM visualizations
		WHERE ` + where

	var (
		record           VisualizationRow
		originalInline   int
		feasibilityScore sql.NullFloat64
		createdAt        string
	)
	err := r.db.DB().QueryRowContext(ctx, query, arg).Scan(
		&record.ID,
		&record.ShareToken,
		&record.OriginalImageURL,
		&originalInline,
		&record.RoomType,
		&record.Style,
		&record.Constraints,
		&record.Analysis,
		&record.Conversation,
		&record.Source,
		&record.DeviceInfo,
		&record.TotalLatencyMS,
		&record.Notes,
		&feasibilityScore,
		&record.SelectedConceptID,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query visualization: %w", err)
	}

	record.OriginalInline = originalInline != 0
	if feasibilityScore.Valid {
		record.FeasibilityScore = &feasibilityScore.Float64
	}
	record.CreatedAt, err = parseTimestamp(createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse visualization created_at: %w", err)
	}

	concepts, err := r.queryConcepts(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	record.Concepts = concepts
	return &record, nil
}

func (r *Repository) queryConcepts(ctx context.Context, visualizationID string) ([]ConceptRow, error) {
	rows, err := r.db.DB().QueryContext(ctx, `
		SELECT id, visualization_id, concept_index, image_url, image_inline,
			   description, created_at
		FROM concepts
		WHERE visualization_id = ?
		ORDER BY concept_index ASC`,
		visualizationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query concepts: %w", err)
	}
	defer rows.Close()

	var concepts []ConceptRow
	for rows.Next() {
		var (
			c           ConceptRow
			imageInline int
			createdAt   string
		)
		if err := rows.Scan(&c.ID, &c.VisualizationID, &c.Index, &c.ImageURL,
			&imageInline, &c.Description, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan concept row: %w", err)
		}
		c.ImageInline = imageInline != 0
		c.CreatedAt, err = parseTimestamp(createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse concept created_at: %w", err)
		}
		concepts = append(concepts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating concept rows: %w", err)
	}
	return concepts, nil
}

// UpdateNotes sets the admin notes on a visualization.
func (r *Repository) UpdateNotes(ctx context.Context, id, notes string) error {
	return r.updateField(ctx, id, "UPDATE visualizations SET notes = ? WHERE id = ?", notes)
}

// UpdateFeasibilityScore sets the admin feasibility assessment.
func (r *Repository) UpdateFeasibilityScore(ctx context.Context, id string, score float64) error {
	if score < 0 || score > 1 {
		return fmt.Errorf("db: feasibility score %v out of range [0,1]", score)
	}
	return r.updateField(ctx, id, "UPDATE visualizations SET feasibility_score = ? WHERE id = ?", score)
}

// SelectConcept marks one concept as the chosen design. The concept must
// belong to the visualization.
func (r *Repository) SelectConcept(ctx context.Context, visualizationID, conceptID string) error {
	if r.db == nil || r.db.DB() == nil {
		return fmt.Errorf("database connection is nil")
	}

	var owner string
	err := r.db.DB().QueryRowContext(ctx,
		"SELECT visualization_id FROM concepts WHERE id = ?", conceptID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to look up concept: %w", err)
	}
	if owner != visualizationID {
		return ErrConceptMismatch
	}

	return r.updateField(ctx, visualizationID,
		"UPDATE visualizations SET selected_concept_id = ? WHERE id = ?", conceptID)
}

func (r *Repository) updateField(ctx context.Context, id, query string, value interface{}) error {
	if r.db == nil || r.db.DB() == nil {
		return fmt.Errorf("database connection is nil")
	}

	result, err := r.db.DB().ExecContext(ctx, query, value, id)
	if err != nil {
		return fmt.Errorf("failed to update visualization: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertPipelineMetrics writes one metrics row synchronously and returns
// its ID.
func (r *Repository) InsertPipelineMetrics(ctx context.Context, row MetricsRow) (int64, error) {
	if r.db == nil || r.db.DB() == nil {
		return 0, fmt.Errorf("database connection is nil")
	}

	result, err := r.db.DB().ExecContext(ctx, `
		INSERT INTO pipeline_metrics (
			correlation_id, visualization_id, room_type, style,
			requested_concepts, generated_concepts, retry_count,
			validation_score, validation_passed,
			analysis_ms, conditioning_ms, generation_ms, total_ms,
			estimated_cost_usd, error, error_code, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.CorrelationID,
		nullString(row.VisualizationID),
		row.RoomType,
		row.Style,
		row.RequestedConcepts,
		row.GeneratedConcepts,
		row.RetryCount,
		nullFloat(row.ValidationScore),
		nullBool(row.ValidationPassed),
		row.AnalysisMS,
		row.ConditioningMS,
		row.GenerationMS,
		row.TotalMS,
		row.EstimatedCostUSD,
		boolToInt(row.Error),
		row.ErrorCode,
		row.ErrorMessage,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert pipeline metrics: %w", err)
	}
	return result.LastInsertId()
}

// QueueMetrics routes a metrics row through the async writer. Returns
// false when no writer is configured or its buffer is full; the caller
// logs and moves on.
func (r *Repository) QueueMetrics(row MetricsRow) bool {
	if r.asyncWriter == nil {
		return false
	}
	return r.asyncWriter.Write(row)
}

// CreateAsyncWriteHandler returns a WriteHandler that persists queued
// MetricsRow payloads. Unknown payload types are dropped.
func (r *Repository) CreateAsyncWriteHandler() WriteHandler {
	return func(op WriteOperation) error {
		row, ok := op.Data.(MetricsRow)
		if !ok {
			return fmt.Errorf("unexpected async payload type %T", op.Data)
		}
		_, err := r.InsertPipelineMetrics(context.Background(), row)
		return err
	}
}

// CountVisualizations returns the total number of visualization records.
func (r *Repository) CountVisualizations(ctx context.Context) (int64, error) {
	if r.db == nil || r.db.DB() == nil {
		return 0, fmt.Errorf("database connection is nil")
	}
	var count int64
	err := r.db.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM visualizations").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count visualizations: %w", err)
	}
	return count, nil
}

// CountPipelineMetrics returns the total number of metrics rows.
func (r *Repository) CountPipelineMetrics(ctx context.Context) (int64, error) {
	if r.db == nil || r.db.DB() == nil {
		return 0, fmt.Errorf("database connection is nil")
	}
	var count int64
	err := r.db.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM pipeline_metrics").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pipeline metrics: %w", err)
	}
	return count, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func nullBool(b *bool) interface{} {
	if b == nil {
		return nil
	}
	return boolToInt(*b)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
