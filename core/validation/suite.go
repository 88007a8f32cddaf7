// Package validation provides the startup validation suite that checks
// configuration and environment health before the visualization server
// begins accepting requests.
package validation

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"

	"renovisio_backend/core"
)

// Step represents a single validation step with its status.
type Step struct {
	Name    string
	Status  StepStatus
	Message string
	Error   error
	Latency time.Duration
}

// StepStatus represents the status of a validation step.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepPassed
	StepFailed
	StepWarning
	StepSkipped
)

// String returns the string representation of a step status.
func (s StepStatus) String() string {
	switch s {
	case StepPending:
		return "pending"
	case StepRunning:
		return "running"
	case StepPassed:
		return "passed"
	case StepFailed:
		return "failed"
	case StepWarning:
		return "warning"
	case StepSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// SuiteResult represents the complete result of validation suite execution.
type SuiteResult struct {
	Steps       []Step
	TotalSteps  int
	PassedSteps int
	FailedSteps int
	Warnings    int
	Duration    time.Duration
	Success     bool
}

// GetErrors returns all errors from failed steps.
func (r SuiteResult) GetErrors() []error {
	var errs []error
	for _, step := range r.Steps {
		if step.Status == StepFailed && step.Error != nil {
			errs = append(errs, step.Error)
		}
	}
	return errs
}

// Suite runs startup checks against a loaded configuration.
// Optional collaborators (depth/edge estimators, analyzer) produce warnings
// when unconfigured, never failures: the pipeline degrades without them.
type Suite struct {
	cfg          *core.Config
	output       io.Writer
	showProgress bool
}

// NewSuite creates a validation suite for the given configuration.
func NewSuite(cfg *core.Config) *Suite {
	return &Suite{
		cfg:          cfg,
		output:       os.Stdout,
		showProgress: true,
	}
}

// WithOutput sets the output writer for progress messages.
func (s *Suite) WithOutput(w io.Writer) *Suite {
	s.output = w
	return s
}

// WithShowProgress enables or disables progress output.
func (s *Suite) WithShowProgress(show bool) *Suite {
	s.showProgress = show
	return s
}

// Validate runs all startup checks in sequence with progress output.
func (s *Suite) Validate() SuiteResult {
	startTime := time.Now()
	steps := make([]Step, 0, 6)

	if s.showProgress {
		s.printHeader("Renovisio Startup Validation")
	}

	steps = append(steps, s.runStep("Model API Credentials", s.checkCredentials))
	steps = append(steps, s.runStep("Artifact Directory", s.checkArtifactDir))
	steps = append(steps, s.runStep("Database Path", s.checkDatabasePath))
	steps = append(steps, s.runStep("Depth Estimator", s.checkDepth))
	steps = append(steps, s.runStep("Edge Estimator", s.checkEdge))
	steps = append(steps, s.runStep("Style Catalog", s.checkCatalog))

	result := s.buildResult(steps, startTime)

	if s.showProgress {
		s.printSummary(result)
	}

	return result
}

// checkFn returns the step status plus a message and optional error.
type checkFn func() (StepStatus, string, error)

func (s *Suite) checkCredentials() (StepStatus, string, error) {
	if s.cfg.OpenAIAPIKey == "" && s.cfg.AzureOpenAIEndpoint == "" {
		return StepFailed, "no model API configured", core.ErrMissingConfig("OPENAI_API_KEY")
	}
	if s.cfg.AzureOpenAIEndpoint != "" {
		return StepPassed, fmt.Sprintf("Azure endpoint %s", s.cfg.AzureOpenAIEndpoint), nil
	}
	return StepPassed, "OpenAI API key configured", nil
}

func (s *Suite) checkArtifactDir() (StepStatus, string, error) {
	dir := s.cfg.ArtifactDir
	if dir == "" {
		return StepFailed, "ARTIFACT_DIR is empty", core.ErrMissingConfig("ARTIFACT_DIR")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return StepFailed, "cannot create artifact directory", err
	}
	// Probe writability with a throwaway file.
	probe := filepath.Join(dir, ".write_probe")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		return StepWarning, "artifact directory not writable; image writes will fall back to inline data", err
	}
	_ = os.Remove(probe)
	return StepPassed, dir, nil
}

func (s *Suite) checkDatabasePath() (StepStatus, string, error) {
	if s.cfg.DatabasePath == "" {
		return StepFailed, "DATABASE_PATH is empty", core.ErrMissingConfig("DATABASE_PATH")
	}
	parent := filepath.Dir(s.cfg.DatabasePath)
	if info, err := os.Stat(parent); err != nil || !info.IsDir() {
		return StepFailed, fmt.Sprintf("parent directory %s does not exist", parent), err
	}
	return StepPassed, s.cfg.DatabasePath, nil
}

func (s *Suite) checkDepth() (StepStatus, string, error) {
	if !s.cfg.EnableDepth {
		return StepSkipped, "disabled by ENABLE_DEPTH", nil
	}
	if s.cfg.DepthEstimatorURL == "" {
		return StepWarning, "no DEPTH_ESTIMATOR_URL; concepts will be generated without depth conditioning", nil
	}
	return StepPassed, s.cfg.DepthEstimatorURL, nil
}

func (s *Suite) checkEdge() (StepStatus, string, error) {
	if !s.cfg.EnableEdge {
		return StepSkipped, "disabled by ENABLE_EDGE", nil
	}
	if s.cfg.EdgeEstimatorURL == "" {
		return StepWarning, "no EDGE_ESTIMATOR_URL; concepts will be generated without edge conditioning", nil
	}
	return StepPassed, s.cfg.EdgeEstimatorURL, nil
}

func (s *Suite) checkCatalog() (StepStatus, string, error) {
	if s.cfg.StyleCatalogPath == "" {
		return StepSkipped, "using built-in room type and style catalog", nil
	}
	if _, err := os.Stat(s.cfg.StyleCatalogPath); err != nil {
		return StepWarning, "catalog file unreadable; falling back to built-in catalog", err
	}
	return StepPassed, s.cfg.StyleCatalogPath, nil
}

// runStep executes a validation step with timing and progress output.
func (s *Suite) runStep(name string, fn checkFn) Step {
	step := Step{Name: name, Status: StepRunning}

	if s.showProgress {
		s.printStepStart(name)
	}

	startTime := time.Now()
	status, message, err := fn()
	step.Latency = time.Since(startTime)
	step.Status = status
	step.Message = message
	step.Error = err

	if s.showProgress {
		s.printStep(step)
	}

	return step
}

// buildResult creates a SuiteResult from completed steps.
func (s *Suite) buildResult(steps []Step, startTime time.Time) SuiteResult {
	result := SuiteResult{
		Steps:      steps,
		TotalSteps: len(steps),
		Duration:   time.Since(startTime),
		Success:    true,
	}

	for _, step := range steps {
		switch step.Status {
		case StepPassed:
			result.PassedSteps++
		case StepFailed:
			result.FailedSteps++
			result.Success = false
		case StepWarning:
			result.Warnings++
		}
	}

	return result
}

// printHeader prints a validation header.
func (s *Suite) printHeader(title string) {
	fmt.Fprintln(s.output)
	headerColor := color.New(color.FgCyan, color.Bold)
	headerColor.Fprintf(s.output, "━━━ %s ━━━\n", title)
	fmt.Fprintln(s.output)
}

// printStepStart prints the step name before execution (for real-time feedback).
func (s *Suite) printStepStart(name string) {
	fmt.Fprintf(s.output, "  ◌ %s...", name)
}

// printStep prints a completed validation step with status indicator.
func (s *Suite) printStep(step Step) {
	var icon string
	var clr *color.Color

	switch step.Status {
	case StepPassed:
		icon = "✓"
		clr = color.New(color.FgGreen)
	case StepFailed:
		icon = "✗"
		clr = color.New(color.FgRed)
	case StepWarning:
		icon = "!"
		clr = color.New(color.FgYellow)
	case StepSkipped:
		icon = "○"
		clr = color.New(color.FgHiBlack)
	default:
		icon = "?"
		clr = color.New(color.FgWhite)
	}

	// Clear the "running" line and print result
	fmt.Fprintf(s.output, "\r")
	clr.Fprintf(s.output, "  %s %s", icon, step.Name)

	if step.Message != "" {
		dim := color.New(color.FgHiBlack)
		dim.Fprintf(s.output, " - %s", step.Message)
	}

	fmt.Fprintln(s.output)

	if step.Status == StepFailed && step.Error != nil {
		errColor := color.New(color.FgRed)
		errColor.Fprintf(s.output, "    └─ %s\n", step.Error.Error())
	}
}

// printSummary prints the validation summary.
func (s *Suite) printSummary(result SuiteResult) {
	fmt.Fprintln(s.output)

	if result.Success {
		successColor := color.New(color.FgGreen, color.Bold)
		successColor.Fprintf(s.output, "━━━ Validation Passed ")
		color.New(color.FgHiBlack).Fprintf(s.output, "(%d/%d checks passed in %v)",
			result.PassedSteps, result.TotalSteps, result.Duration.Round(time.Millisecond))
		successColor.Fprintln(s.output, " ━━━")
	} else {
		failColor := color.New(color.FgRed, color.Bold)
		failColor.Fprintf(s.output, "━━━ Validation Failed ")
		color.New(color.FgHiBlack).Fprintf(s.output, "(%d passed, %d failed)",
			result.PassedSteps, result.FailedSteps)
		failColor.Fprintln(s.output, " ━━━")
	}

	fmt.Fprintln(s.output)
}
