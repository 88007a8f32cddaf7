package validator

import (
	"context"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap/zapcore"

	"renovisio_backend/logging"
)

type fakeClient struct {
	response string
	err      error

	lastRequest openai.ChatCompletionRequest
}

func (f *fakeClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.lastRequest = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.response}},
		},
	}, nil
}

type nopSyncer struct{}

func (nopSyncer) Write(p []byte) (int, error) { return len(p), nil }
func (nopSyncer) Sync() error                 { return nil }

func testLogger() *logging.Logger {
	return logging.NewLoggerWithWriters(true, zapcore.AddSync(nopSyncer{}), zapcore.AddSync(nopSyncer{}))
}

func TestScorePassing(t *testing.T) {
	fc := &fakeClient{response: `{"score": 0.85, "deviations": ""}`}
	v := newWithClient(DefaultConfig(), fc, testLogger())

	out, err := v.Score(context.Background(), []byte("orig"), []byte("cand"), "image/png")
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if out.Score != 0.85 {
		t.Errorf("score = %v, want 0.85", out.Score)
	}
	if !out.Passed {
		t.Error("0.85 should pass the 0.7 threshold")
	}
}

func TestScoreFailingWithFeedback(t *testing.T) {
	fc := &fakeClient{response: "```json\n{\"score\": 0.4, \"deviations\": \"window moved to east wall\"}\n```"}
	v := newWithClient(DefaultConfig(), fc, testLogger())

	out, err := v.Score(context.Background(), []byte("orig"), []byte("cand"), "image/png")
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if out.Passed {
		t.Error("0.4 should fail the threshold")
	}
	if out.Feedback != "window moved to east wall" {
		t.Errorf("feedback = %q", out.Feedback)
	}
}

func TestScoreThresholdBoundary(t *testing.T) {
	fc := &fakeClient{response: `{"score": 0.7}`}
	v := newWithClient(DefaultConfig(), fc, testLogger())

	out, err := v.Score(context.Background(), []byte("orig"), []byte("cand"), "image/png")
	if err != nil {
		t.Fatal(err)
	}
	if !out.Passed {
		t.Error("exactly 0.7 should pass")
	}
}

func TestScoreSendsBothImages(t *testing.T) {
	fc := &fakeClient{response: `{"score": 1.0}`}
	v := newWithClient(DefaultConfig(), fc, testLogger())

	if _, err := v.Score(context.Background(), []byte("orig"), []byte("cand"), "image/png"); err != nil {
		t.Fatal(err)
	}

	user := fc.lastRequest.Messages[1]
	imageParts := 0
	for _, part := range user.MultiContent {
		if part.ImageURL != nil {
			imageParts++
		}
	}
	if imageParts != 2 {
		t.Errorf("image parts = %d, want 2", imageParts)
	}
}

func TestScoreErrors(t *testing.T) {
	tests := []struct {
		name    string
		client  *fakeClient
		wantErr error
	}{
		{"transport failure", &fakeClient{err: errors.New("timeout")}, ErrValidationFailed},
		{"empty response", &fakeClient{response: ""}, ErrValidationFailed},
		{"garbage response", &fakeClient{response: "looks fine to me"}, ErrInvalidResponse},
		{"score out of range", &fakeClient{response: `{"score": 7.0}`}, ErrInvalidResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newWithClient(DefaultConfig(), tt.client, testLogger())
			_, err := v.Score(context.Background(), []byte("o"), []byte("c"), "image/png")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
