package conditioning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"

	"renovisio_backend/logging"
)

// Extractor derives one conditioning image from a source photo. Extract
// never returns an error: disabled features, unreachable upstreams,
// timeouts, and malformed responses all collapse to "absent" with a
// logged reason.
type Extractor interface {
	Role() Role
	Extract(ctx context.Context, imageData []byte, mimeType string) (Image, bool)
}

// EstimatorConfig configures one HTTP estimator endpoint.
type EstimatorConfig struct {
	// URL is the estimator endpoint; empty means unconfigured
	URL string

	// Timeout bounds a single extraction call
	Timeout time.Duration

	// Enabled toggles the feature without removing its configuration
	Enabled bool
}

// estimateRequest is the wire format sent to depth/edge estimators.
type estimateRequest struct {
	Image    string `json:"image"`
	MimeType string `json:"mime_type"`
}

// estimateResponse is the wire format returned by estimators. MetricMin
// and MetricMax are reported by depth estimators only.
type estimateResponse struct {
	Image     string   `json:"image"`
	MimeType  string   `json:"mime_type"`
	MetricMin *float64 `json:"metric_min,omitempty"`
	MetricMax *float64 `json:"metric_max,omitempty"`
}

// HTTPEstimator calls an external estimation service over HTTP with a
// JSON body. The same client serves both depth and edge estimation; the
// role controls metric-range handling.
type HTTPEstimator struct {
	role   Role
	config EstimatorConfig
	client *http.Client
	logger *logging.Logger
}

// NewDepthEstimator creates an extractor for depth maps.
func NewDepthEstimator(config EstimatorConfig, client *http.Client, logger *logging.Logger) *HTTPEstimator {
	return newEstimator(RoleDepth, config, client, logger)
}

// NewEdgeEstimator creates an extractor for edge maps.
func NewEdgeEstimator(config EstimatorConfig, client *http.Client, logger *logging.Logger) *HTTPEstimator {
	return newEstimator(RoleEdge, config, client, logger)
}

func newEstimator(role Role, config EstimatorConfig, client *http.Client, logger *logging.Logger) *HTTPEstimator {
	if client == nil {
		client = http.DefaultClient
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &HTTPEstimator{
		role:   role,
		config: config,
		client: client,
		logger: logger.Named("conditioning").With(zap.String("role", string(role))),
	}
}

// Role returns the conditioning role this estimator produces.
func (e *HTTPEstimator) Role() Role { return e.role }

// Extract calls the estimator and returns its conditioning image. The
// boolean reports presence; false means the image is absent and the
// reason has been logged.
func (e *HTTPEstimator) Extract(ctx context.Context, imageData []byte, mimeType string) (Image, bool) {
	if !e.config.Enabled {
		e.logger.Debug("extraction skipped: disabled by configuration")
		return Image{}, false
	}
	if e.config.URL == "" {
		e.logger.Debug("extraction skipped: no endpoint configured")
		return Image{}, false
	}

	start := time.Now()
	img, err := e.call(ctx, imageData, mimeType)
	if err != nil {
		e.logger.Warn("extraction failed, continuing without",
			zap.String("reason", failureReason(err)),
			zap.Error(err),
			logging.LatencyField(time.Since(start)))
		return Image{}, false
	}

	e.logger.Info("conditioning image extracted",
		zap.Int("bytes", len(img.Data)),
		logging.LatencyField(time.Since(start)))
	return img, true
}

func (e *HTTPEstimator) call(ctx context.Context, imageData []byte, mimeType string) (Image, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	body, err := json.Marshal(estimateRequest{
		Image:    base64.StdEncoding.EncodeToString(imageData),
		MimeType: mimeType,
	})
	if err != nil {
		return Image{}, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, e.config.URL, bytes.NewReader(body))
	if err != nil {
		return Image{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return Image{}, fmt.Errorf("calling estimator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Image{}, fmt.Errorf("estimator returned status %d", resp.StatusCode)
	}

	var parsed estimateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Image{}, fmt.Errorf("decoding response: %w", err)
	}
	if parsed.Image == "" {
		return Image{}, errors.New("estimator returned empty image")
	}

	data, err := base64.StdEncoding.DecodeString(parsed.Image)
	if err != nil {
		return Image{}, fmt.Errorf("decoding image payload: %w", err)
	}

	img := Image{
		Role:     e.role,
		Data:     data,
		MimeType: parsed.MimeType,
	}
	if img.MimeType == "" {
		img.MimeType = "image/png"
	}
	if e.role == RoleDepth {
		img.MetricMin, img.MetricMax = normalizeMetricRange(parsed.MetricMin, parsed.MetricMax)
	}
	return img, nil
}

// normalizeMetricRange replaces missing or nonsensical depth ranges with
// the defaults so downstream prompts never see null or NaN distances.
func normalizeMetricRange(min, max *float64) (float64, float64) {
	lo, hi := DefaultMetricMin, DefaultMetricMax
	if min != nil && !math.IsNaN(*min) && !math.IsInf(*min, 0) && *min > 0 {
		lo = *min
	}
	if max != nil && !math.IsNaN(*max) && !math.IsInf(*max, 0) && *max > lo {
		hi = *max
	}
	if hi <= lo {
		return DefaultMetricMin, DefaultMetricMax
	}
	return lo, hi
}

// failureReason classifies an extraction error for logging.
func failureReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "upstream_error"
	}
}
