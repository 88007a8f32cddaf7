package generation

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"renovisio_backend/logging"
)

// Generator is the pipeline's adapter over an image generation provider.
// GenerateOne performs exactly one model call and retrieves the result as
// raw bytes; it holds no per-request state and performs no persistence.
type Generator struct {
	provider   Provider
	downloader *Downloader
	logger     *logging.Logger
}

// NewGenerator creates a Generator. A nil downloader gets defaults; the
// logger must not be nil.
func NewGenerator(provider Provider, downloader *Downloader, logger *logging.Logger) *Generator {
	if downloader == nil {
		downloader = NewDownloader(DefaultDownloaderConfig())
	}
	return &Generator{
		provider:   provider,
		downloader: downloader,
		logger:     logger.Named("generation"),
	}
}

// GenerateOne produces one candidate image for the prompt and returns its
// bytes and MIME type. URL-form provider results are downloaded
// immediately; base64 results are decoded in place. The index identifies
// the concept slot for logging only.
func (g *Generator) GenerateOne(ctx context.Context, prompt string, index int) ([]byte, string, error) {
	start := time.Now()
	log := g.logger.With(logging.ConceptField(index))

	result, err := g.provider.Generate(ctx, prompt)
	if err != nil {
		return nil, "", fmt.Errorf("generating concept %d: %w", index, err)
	}

	var (
		data     []byte
		mimeType string
	)
	switch {
	case result.B64JSON != "":
		data, err = base64.StdEncoding.DecodeString(result.B64JSON)
		if err != nil {
			return nil, "", fmt.Errorf("decoding concept %d image data: %w", index, err)
		}
		mimeType = http.DetectContentType(data)
	case result.URL != "":
		data, mimeType, err = g.downloader.Download(ctx, result.URL)
		if err != nil {
			return nil, "", fmt.Errorf("retrieving concept %d: %w", index, err)
		}
	default:
		return nil, "", fmt.Errorf("generating concept %d: provider returned empty result", index)
	}

	if len(data) == 0 {
		return nil, "", fmt.Errorf("generating concept %d: empty image", index)
	}

	log.Info("concept generated",
		zap.Int("bytes", len(data)),
		zap.String("mime_type", mimeType),
		logging.LatencyField(time.Since(start)))

	return data, mimeType, nil
}
