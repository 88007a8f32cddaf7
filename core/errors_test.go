package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestPipelineErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  *PipelineError
		code string
	}{
		{"invalid image", ErrInvalidImage("bad bytes", nil), ErrCodeInvalidImage},
		{"storage", ErrStorage("record write failed", errors.New("disk full")), ErrCodeStorageError},
		{"generation", ErrGenerationFailed("all concepts failed", nil), ErrCodeGenerationFailed},
		{"timeout", ErrTimeout("budget exceeded", nil), ErrCodeTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.code {
				t.Errorf("ErrorCode = %s, want %s", got, tt.code)
			}
		})
	}
}

func TestErrorCodeUnknownForPlainErrors(t *testing.T) {
	if got := ErrorCode(errors.New("boom")); got != ErrCodeUnknown {
		t.Errorf("ErrorCode = %s, want %s", got, ErrCodeUnknown)
	}
}

func TestPipelineErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	wrapped := fmt.Errorf("calling store: %w", ErrStorage("put failed", cause))

	pe, ok := IsPipelineError(wrapped)
	if !ok {
		t.Fatal("expected to find PipelineError through wrapping")
	}
	if pe.Code != ErrCodeStorageError {
		t.Errorf("code = %s, want %s", pe.Code, ErrCodeStorageError)
	}
	if !errors.Is(wrapped, cause) {
		t.Error("expected cause to be reachable via errors.Is")
	}
}

func TestConfigErrorMessageIncludesAction(t *testing.T) {
	err := ErrMissingConfig("OPENAI_API_KEY")
	want := "Missing required configuration: OPENAI_API_KEY. Set OPENAI_API_KEY in your .env file"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
