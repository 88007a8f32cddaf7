package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"renovisio_backend/analyzer"
	"renovisio_backend/catalog"
	"renovisio_backend/conditioning"
	"renovisio_backend/core"
	"renovisio_backend/db"
	"renovisio_backend/metrics"
	"renovisio_backend/validator"
)

// sourcePhoto returns a decodable PNG large enough to pass source
// validation.
func sourcePhoto(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 96, 96))
	for y := 0; y < 96; y++ {
		for x := 0; x < 96; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding source photo: %v", err)
	}
	return buf.Bytes()
}

type fakeAnalyzer struct {
	analysis *analyzer.RoomAnalysis
	err      error
	calls    int
	lastHint string
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, imageData []byte, mimeType, roomTypeHint string) (*analyzer.RoomAnalysis, error) {
	a.calls++
	a.lastHint = roomTypeHint
	return a.analysis, a.err
}

// fakeExtractor implements conditioning.Extractor with a fixed outcome.
type fakeExtractor struct {
	role  conditioning.Role
	ok    bool
	calls int
	mu    sync.Mutex
}

func (e *fakeExtractor) Role() conditioning.Role { return e.role }

func (e *fakeExtractor) Extract(ctx context.Context, imageData []byte, mimeType string) (conditioning.Image, bool) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if !e.ok {
		return conditioning.Image{}, false
	}
	return conditioning.Image{
		Role:     e.role,
		Data:     []byte(string(e.role) + "-map"),
		MimeType: "image/png",
	}, true
}

// indexedGenerator fails the slots listed in failIndexes and records
// every prompt it sees.
type indexedGenerator struct {
	failIndexes map[int]bool
	blockUntil  bool
	mu          sync.Mutex
	prompts     map[int][]string
}

func newIndexedGenerator(failIndexes ...int) *indexedGenerator {
	fails := make(map[int]bool, len(failIndexes))
	for _, i := range failIndexes {
		fails[i] = true
	}
	return &indexedGenerator{failIndexes: fails, prompts: make(map[int][]string)}
}

func (g *indexedGenerator) GenerateOne(ctx context.Context, prompt string, index int) ([]byte, string, error) {
	g.mu.Lock()
	g.prompts[index] = append(g.prompts[index], prompt)
	g.mu.Unlock()
	if g.blockUntil {
		<-ctx.Done()
		return nil, "", ctx.Err()
	}
	if g.failIndexes[index] {
		return nil, "", fmt.Errorf("upstream refused slot %d", index)
	}
	return []byte(fmt.Sprintf("concept-%d", index)), "image/png", nil
}

func (g *indexedGenerator) totalCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, p := range g.prompts {
		n += len(p)
	}
	return n
}

type passingValidator struct{ calls int }

func (v *passingValidator) Score(ctx context.Context, original, candidate []byte, mimeType string) (validator.Outcome, error) {
	v.calls++
	return validator.Outcome{Score: 0.95, Passed: true}, nil
}

// fakeStore returns deterministic URLs, or fails every write.
type fakeStore struct {
	fail bool
	mu   sync.Mutex
	puts int
}

func (s *fakeStore) Put(ctx context.Context, data []byte, mimeType string) (string, error) {
	s.mu.Lock()
	s.puts++
	n := s.puts
	s.mu.Unlock()
	if s.fail {
		return "", errors.New("object store unreachable")
	}
	return fmt.Sprintf("https://cdn.example.com/artifacts/%d.png", n), nil
}

type fakeRecords struct {
	fail bool
	rows []db.VisualizationRow
}

func (r *fakeRecords) InsertVisualization(ctx context.Context, row db.VisualizationRow) error {
	if r.fail {
		return errors.New("database locked")
	}
	r.rows = append(r.rows, row)
	return nil
}

type captureSink struct {
	mu       sync.Mutex
	recorded []metrics.PipelineMetrics
}

func (s *captureSink) Record(m metrics.PipelineMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorded = append(s.recorded, m)
}

func (s *captureSink) last(t *testing.T) metrics.PipelineMetrics {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.recorded) == 0 {
		t.Fatal("no metrics recorded")
	}
	return s.recorded[len(s.recorded)-1]
}

// testHarness bundles the default healthy collaborators for one test.
type testHarness struct {
	analyzer  *fakeAnalyzer
	depth     *fakeExtractor
	edge      *fakeExtractor
	generator *indexedGenerator
	validator *passingValidator
	store     *fakeStore
	records   *fakeRecords
	sink      *captureSink
}

func newHarness() *testHarness {
	return &testHarness{
		analyzer: &fakeAnalyzer{analysis: &analyzer.RoomAnalysis{
			Summary: "dated bathroom with a window on the north wall",
			Raw:     `{"summary":"dated bathroom"}`,
		}},
		depth:     &fakeExtractor{role: conditioning.RoleDepth, ok: true},
		edge:      &fakeExtractor{role: conditioning.RoleEdge, ok: true},
		generator: newIndexedGenerator(),
		validator: &passingValidator{},
		store:     &fakeStore{},
		records:   &fakeRecords{},
		sink:      &captureSink{},
	}
}

func (h *testHarness) orchestrator(options Options) *Orchestrator {
	return New(Deps{
		Catalog:    catalog.New(),
		Analyzer:   h.analyzer,
		Extractors: []conditioning.Extractor{h.depth, h.edge},
		Generator:  h.generator,
		Validator:  h.validator,
		Artifacts:  h.store,
		Records:    h.records,
		Metrics:    h.sink,
		Logger:     testLogger(),
	}, options)
}

func baseRequest(t *testing.T, n int) GenerationRequest {
	return GenerationRequest{
		ImageData:    sourcePhoto(t),
		RoomType:     "bathroom",
		Style:        "scandinavian",
		Constraints:  "keep the existing window",
		ConceptCount: n,
		Mode:         ModeQuick,
	}
}

func TestGenerateAllHealthy(t *testing.T) {
	h := newHarness()
	o := h.orchestrator(DefaultOptions())

	record, err := o.Generate(context.Background(), baseRequest(t, 4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(record.Concepts) != 4 {
		t.Fatalf("expected 4 concepts, got %d", len(record.Concepts))
	}
	for i, c := range record.Concepts {
		if c.Index != i {
			t.Errorf("concept %d carries index %d", i, c.Index)
		}
		if c.Image.IsInline() {
			t.Errorf("concept %d should be durably stored", i)
		}
		if !strings.HasPrefix(c.Image.URL(), "https://cdn.example.com/") {
			t.Errorf("concept %d URL = %q", i, c.Image.URL())
		}
		if c.ID == "" || c.Description == "" {
			t.Errorf("concept %d missing ID or description", i)
		}
	}
	if record.ID == "" || record.ShareToken == "" {
		t.Error("record missing ID or share token")
	}
	if record.RoomType != "bathroom" || record.Style != "scandinavian" {
		t.Errorf("resolved room/style = %s/%s", record.RoomType, record.Style)
	}
	if record.OriginalImage.IsInline() {
		t.Error("original should be durably stored")
	}

	if len(h.records.rows) != 1 {
		t.Fatalf("expected 1 record write, got %d", len(h.records.rows))
	}
	row := h.records.rows[0]
	if len(row.Concepts) != 4 {
		t.Errorf("persisted row has %d concepts", len(row.Concepts))
	}
	if row.Analysis == "" {
		t.Error("persisted row missing raw analysis")
	}
	if h.analyzer.lastHint != "bathroom" {
		t.Errorf("analyzer hint = %q", h.analyzer.lastHint)
	}

	// Both conditioning maps were gathered and surfaced in the prompt.
	prompt := h.generator.prompts[0][0]
	if !strings.Contains(prompt, "depth map") || !strings.Contains(prompt, "edge map") {
		t.Errorf("prompt missing conditioning note: %q", prompt)
	}
	if !strings.Contains(prompt, "dated bathroom") {
		t.Errorf("prompt missing analysis summary: %q", prompt)
	}

	m := h.sink.last(t)
	if m.GeneratedConcepts != 4 || m.RequestedConcepts != 4 {
		t.Errorf("metrics concepts = %d/%d", m.GeneratedConcepts, m.RequestedConcepts)
	}
	if m.GenerationCalls != 4 {
		t.Errorf("metrics generation calls = %d", m.GenerationCalls)
	}
	if m.AnalysisCalls != 1 || m.ConditioningCalls != 2 {
		t.Errorf("metrics analysis/conditioning calls = %d/%d", m.AnalysisCalls, m.ConditioningCalls)
	}
	if m.ValidationScore == nil || *m.ValidationScore != 0.95 {
		t.Errorf("metrics validation score = %v", m.ValidationScore)
	}
	if m.ErrorCode != "" {
		t.Errorf("metrics error code = %q on success", m.ErrorCode)
	}
	if m.VisualizationID != record.ID {
		t.Errorf("metrics visualization id = %q, want %q", m.VisualizationID, record.ID)
	}
}

func TestGenerateSucceedsWhenMetricsDrop(t *testing.T) {
	// A recorder backed by a repository with no async writer drops every
	// row. The request outcome must not change.
	h := newHarness()
	o := New(Deps{
		Catalog:    catalog.New(),
		Analyzer:   h.analyzer,
		Extractors: []conditioning.Extractor{h.depth, h.edge},
		Generator:  h.generator,
		Validator:  h.validator,
		Artifacts:  h.store,
		Records:    h.records,
		Metrics:    metrics.NewRecorder(db.NewRepository(nil, nil), testLogger()),
		Logger:     testLogger(),
	}, DefaultOptions())

	record, err := o.Generate(context.Background(), baseRequest(t, 2))
	if err != nil {
		t.Fatalf("dropped metrics must not fail the request: %v", err)
	}
	if len(record.Concepts) != 2 {
		t.Fatalf("expected 2 concepts, got %d", len(record.Concepts))
	}
	if len(h.records.rows) != 1 {
		t.Errorf("expected 1 record write, got %d", len(h.records.rows))
	}
}

func TestGeneratePartialFailureSucceeds(t *testing.T) {
	h := newHarness()
	h.generator = newIndexedGenerator(2)
	o := h.orchestrator(DefaultOptions())

	record, err := o.Generate(context.Background(), baseRequest(t, 4))
	if err != nil {
		t.Fatalf("one failed slot must not fail the request: %v", err)
	}

	if len(record.Concepts) != 3 {
		t.Fatalf("expected 3 surviving concepts, got %d", len(record.Concepts))
	}
	gotIndexes := []int{record.Concepts[0].Index, record.Concepts[1].Index, record.Concepts[2].Index}
	for i, want := range []int{0, 1, 3} {
		if gotIndexes[i] != want {
			t.Errorf("surviving indexes = %v, want [0 1 3]", gotIndexes)
			break
		}
	}

	m := h.sink.last(t)
	if m.GeneratedConcepts != 3 {
		t.Errorf("metrics generated = %d, want 3", m.GeneratedConcepts)
	}
	if m.ErrorCode != "" {
		t.Errorf("partial failure must not set an error code, got %q", m.ErrorCode)
	}
}

func TestGenerateTotalFailure(t *testing.T) {
	h := newHarness()
	h.generator = newIndexedGenerator(0, 1, 2, 3)
	o := h.orchestrator(DefaultOptions())

	_, err := o.Generate(context.Background(), baseRequest(t, 4))
	if err == nil {
		t.Fatal("expected error when every slot fails")
	}
	if code := core.ErrorCode(err); code != core.ErrCodeGenerationFailed {
		t.Errorf("error code = %q, want %q", code, core.ErrCodeGenerationFailed)
	}
	if !strings.Contains(err.Error(), "upstream refused") {
		t.Errorf("error should carry the first underlying message: %v", err)
	}
	if len(h.records.rows) != 0 {
		t.Error("no record may be written without concepts")
	}

	m := h.sink.last(t)
	if m.ErrorCode != core.ErrCodeGenerationFailed {
		t.Errorf("metrics error code = %q", m.ErrorCode)
	}
	if m.GeneratedConcepts != 0 {
		t.Errorf("metrics generated = %d", m.GeneratedConcepts)
	}
}

func TestGenerateTimeout(t *testing.T) {
	h := newHarness()
	h.generator = newIndexedGenerator()
	h.generator.blockUntil = true
	options := DefaultOptions()
	options.Timeout = 50 * time.Millisecond
	o := h.orchestrator(options)

	_, err := o.Generate(context.Background(), baseRequest(t, 2))
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if code := core.ErrorCode(err); code != core.ErrCodeTimeout {
		t.Errorf("error code = %q, want %q", code, core.ErrCodeTimeout)
	}
	if m := h.sink.last(t); m.ErrorCode != core.ErrCodeTimeout {
		t.Errorf("metrics error code = %q", m.ErrorCode)
	}
}

func TestGenerateDepthFailureKeepsEdge(t *testing.T) {
	h := newHarness()
	h.depth.ok = false
	o := h.orchestrator(DefaultOptions())

	_, err := o.Generate(context.Background(), baseRequest(t, 1))
	if err != nil {
		t.Fatalf("conditioning failure must not fail the request: %v", err)
	}

	prompt := h.generator.prompts[0][0]
	if strings.Contains(prompt, "depth map") {
		t.Errorf("prompt must not mention the absent depth map: %q", prompt)
	}
	if !strings.Contains(prompt, "edge map") {
		t.Errorf("prompt should mention the surviving edge map: %q", prompt)
	}
	if h.depth.calls != 1 || h.edge.calls != 1 {
		t.Errorf("extractor calls = %d/%d, want 1/1", h.depth.calls, h.edge.calls)
	}
}

func TestGenerateStoreFailureFallsBackInline(t *testing.T) {
	h := newHarness()
	h.store.fail = true
	o := h.orchestrator(DefaultOptions())

	record, err := o.Generate(context.Background(), baseRequest(t, 2))
	if err != nil {
		t.Fatalf("store failure must not fail the request: %v", err)
	}

	if !record.OriginalImage.IsInline() {
		t.Error("original should fall back to an inline reference")
	}
	for i, c := range record.Concepts {
		if !c.Image.IsInline() {
			t.Errorf("concept %d should fall back to inline", i)
		}
		if !strings.HasPrefix(c.Image.URL(), "data:image/png;base64,") {
			t.Errorf("concept %d inline URL = %q", i, c.Image.URL())
		}
		if len(c.Image.Data()) == 0 {
			t.Errorf("concept %d inline reference lost its bytes", i)
		}
	}
	if len(h.records.rows) != 1 {
		t.Fatal("record must still be written with inline references")
	}
	if !h.records.rows[0].OriginalInline {
		t.Error("persisted row should flag the inline original")
	}
}

func TestGenerateAnalyzerFailureDegrades(t *testing.T) {
	h := newHarness()
	h.analyzer.analysis = nil
	h.analyzer.err = errors.New("vision model overloaded")
	o := h.orchestrator(DefaultOptions())

	record, err := o.Generate(context.Background(), baseRequest(t, 2))
	if err != nil {
		t.Fatalf("analyzer failure must not fail the request: %v", err)
	}
	if len(record.Concepts) != 2 {
		t.Fatalf("expected 2 concepts, got %d", len(record.Concepts))
	}
	if h.records.rows[0].Analysis != "" {
		t.Error("row must not carry analysis when the analyzer failed")
	}
	if m := h.sink.last(t); m.AnalysisCalls != 1 {
		t.Errorf("failed analysis call still counts, got %d", m.AnalysisCalls)
	}
}

func TestGenerateSuppliedAnalysisSkipsAnalyzer(t *testing.T) {
	h := newHarness()
	o := h.orchestrator(DefaultOptions())

	req := baseRequest(t, 1)
	req.Analysis = &analyzer.RoomAnalysis{Summary: "caller-supplied summary"}
	if _, err := o.Generate(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.analyzer.calls != 0 {
		t.Errorf("analyzer must be skipped, got %d calls", h.analyzer.calls)
	}
	if prompt := h.generator.prompts[0][0]; !strings.Contains(prompt, "caller-supplied summary") {
		t.Errorf("prompt missing supplied analysis: %q", prompt)
	}
}

func TestGenerateMinimalDeps(t *testing.T) {
	// No analyzer, extractors, validator, store or sink: the pipeline
	// still delivers inline concepts.
	gen := newIndexedGenerator()
	records := &fakeRecords{}
	o := New(Deps{
		Catalog:   catalog.New(),
		Generator: gen,
		Records:   records,
		Logger:    testLogger(),
	}, DefaultOptions())

	record, err := o.Generate(context.Background(), baseRequest(t, 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(record.Concepts) != 3 {
		t.Fatalf("expected 3 concepts, got %d", len(record.Concepts))
	}
	if !record.OriginalImage.IsInline() {
		t.Error("original must be inline without an artifact store")
	}
	if len(records.rows) != 1 {
		t.Fatal("record must be written")
	}
}

func TestGenerateRecordWriteFailure(t *testing.T) {
	h := newHarness()
	h.records.fail = true
	o := h.orchestrator(DefaultOptions())

	_, err := o.Generate(context.Background(), baseRequest(t, 2))
	if err == nil {
		t.Fatal("expected error when the record write fails")
	}
	if code := core.ErrorCode(err); code != core.ErrCodeStorageError {
		t.Errorf("error code = %q, want %q", code, core.ErrCodeStorageError)
	}
	if m := h.sink.last(t); m.ErrorCode != core.ErrCodeStorageError {
		t.Errorf("metrics error code = %q", m.ErrorCode)
	}
}

func TestGenerateRejectsInvalidImage(t *testing.T) {
	h := newHarness()
	o := h.orchestrator(DefaultOptions())

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not an image", []byte("definitely not pixels")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := baseRequest(t, 2)
			req.ImageData = tt.data
			_, err := o.Generate(context.Background(), req)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if code := core.ErrorCode(err); code != core.ErrCodeInvalidImage {
				t.Errorf("error code = %q, want %q", code, core.ErrCodeInvalidImage)
			}
		})
	}
	if h.generator.totalCalls() != 0 {
		t.Errorf("generator must not run for invalid input, got %d calls", h.generator.totalCalls())
	}
}

func TestGenerateClampsConceptCount(t *testing.T) {
	h := newHarness()
	options := DefaultOptions()
	options.MaxConcepts = 2
	o := h.orchestrator(options)

	record, err := o.Generate(context.Background(), baseRequest(t, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(record.Concepts) != 2 {
		t.Errorf("expected clamp to 2 concepts, got %d", len(record.Concepts))
	}

	record, err = o.Generate(context.Background(), baseRequest(t, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(record.Concepts) != 1 {
		t.Errorf("expected zero count to default to 1, got %d", len(record.Concepts))
	}
}

func TestGenerateUnknownVocabularyUsesDefaults(t *testing.T) {
	h := newHarness()
	o := h.orchestrator(DefaultOptions())

	req := baseRequest(t, 1)
	req.RoomType = "orangery"
	req.Style = "vaporwave"
	record, err := o.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.RoomType != string(catalog.DefaultRoomType) {
		t.Errorf("room type = %q, want default %q", record.RoomType, catalog.DefaultRoomType)
	}
	if record.Style != string(catalog.DefaultStyle) {
		t.Errorf("style = %q, want default %q", record.Style, catalog.DefaultStyle)
	}

	// The stored record uses the safe enums, but the free text still
	// drives the generation prompt.
	prompt := h.generator.prompts[0][0]
	for _, want := range []string{"orangery", "vaporwave"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing requested vocabulary %q:\n%s", want, prompt)
		}
	}
}

func TestGenerateRefinementAccounting(t *testing.T) {
	// A first slot failing validation drives one corrective retry; the
	// metrics record reflects the extra calls.
	h := newHarness()
	failing := &scriptedValidator{outcomes: []validator.Outcome{
		{Score: 0.3, Passed: false, Feedback: "door missing"},
	}}
	o := New(Deps{
		Catalog:   catalog.New(),
		Generator: h.generator,
		Validator: failing,
		Records:   h.records,
		Metrics:   h.sink,
		Logger:    testLogger(),
	}, DefaultOptions())

	record, err := o.Generate(context.Background(), baseRequest(t, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(record.Concepts) != 2 {
		t.Fatalf("expected 2 concepts, got %d", len(record.Concepts))
	}

	m := h.sink.last(t)
	if m.GenerationCalls != 3 {
		t.Errorf("expected 3 generation calls (1 retried + 1 direct), got %d", m.GenerationCalls)
	}
	if m.RetryCount != 1 {
		t.Errorf("expected retry count 1, got %d", m.RetryCount)
	}
	if m.ValidationScore == nil || *m.ValidationScore != 0.3 {
		t.Errorf("metrics validation score = %v", m.ValidationScore)
	}
	if m.ValidationPassed == nil || *m.ValidationPassed {
		t.Errorf("metrics validation passed = %v", m.ValidationPassed)
	}

	// Only two slots exist; the corrective retry reuses slot 0.
	if calls := len(h.generator.prompts[0]); calls != 2 {
		t.Errorf("slot 0 generation calls = %d, want 2", calls)
	}
	if !strings.Contains(h.generator.prompts[0][1], "door missing") {
		t.Errorf("retry prompt missing corrective feedback: %q", h.generator.prompts[0][1])
	}
}
