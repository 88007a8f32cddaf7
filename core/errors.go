package core

import (
	"errors"
	"fmt"
)

// Pipeline error codes. These are the only codes the visualization pipeline
// surfaces across its boundary; everything else is wrapped into UNKNOWN.
const (
	ErrCodeInvalidImage     = "INVALID_IMAGE"
	ErrCodeStorageError     = "STORAGE_ERROR"
	ErrCodeGenerationFailed = "GENERATION_FAILED"
	ErrCodeTimeout          = "TIMEOUT"
	ErrCodeUnknown          = "UNKNOWN"
)

// PipelineError is a tagged error returned across the pipeline boundary.
// Code is one of the ErrCode* constants; Message is a human-readable detail
// string safe to show to API consumers. Err carries the underlying cause
// for logging and is never serialized into responses.
type PipelineError struct {
	Code    string
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError creates a tagged pipeline error wrapping an underlying cause.
func NewPipelineError(code, message string, err error) *PipelineError {
	return &PipelineError{Code: code, Message: message, Err: err}
}

// ErrInvalidImage tags an error as an input-image validation failure.
func ErrInvalidImage(message string, err error) *PipelineError {
	return NewPipelineError(ErrCodeInvalidImage, message, err)
}

// ErrStorage tags an error as an aggregate-record persistence failure.
// Note that individual image writes never produce this error; they fall
// back to inline references instead.
func ErrStorage(message string, err error) *PipelineError {
	return NewPipelineError(ErrCodeStorageError, message, err)
}

// ErrGenerationFailed tags an error as a total generation failure
// (zero concepts produced).
func ErrGenerationFailed(message string, err error) *PipelineError {
	return NewPipelineError(ErrCodeGenerationFailed, message, err)
}

// ErrTimeout tags an error as an overall pipeline timeout.
func ErrTimeout(message string, err error) *PipelineError {
	return NewPipelineError(ErrCodeTimeout, message, err)
}

// IsPipelineError checks if an error is a PipelineError and returns it if so.
func IsPipelineError(err error) (*PipelineError, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// ErrorCode extracts the pipeline error code from an error.
// Returns ErrCodeUnknown for errors that are not PipelineErrors.
func ErrorCode(err error) string {
	if pe, ok := IsPipelineError(err); ok {
		return pe.Code
	}
	return ErrCodeUnknown
}

// ConfigError represents a configuration-related error with actionable instructions.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // Actionable instruction for resolution
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Error codes for configuration errors
const (
	ErrCodeMissingConfig = "MISSING_CONFIG"
	ErrCodeInvalidConfig = "INVALID_CONFIG"
)

// ErrMissingConfig returns an error for missing required configuration.
func ErrMissingConfig(varName string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingConfig,
		Message: fmt.Sprintf("Missing required configuration: %s", varName),
		Action:  fmt.Sprintf("Set %s in your .env file", varName),
	}
}

// ErrInvalidConfig returns an error for a configuration value that fails validation.
func ErrInvalidConfig(varName, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidConfig,
		Message: fmt.Sprintf("Invalid configuration for %s: %s", varName, reason),
		Action:  fmt.Sprintf("Fix %s in your .env file", varName),
	}
}

// IsConfigError checks if an error is a ConfigError and returns it if so.
func IsConfigError(err error) (*ConfigError, bool) {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
