// Package brief ingests optional design-brief PDFs uploaded alongside a
// visualization request. Extracted text is folded into the request
// constraints so the brief influences prompt building without a separate
// pipeline stage.
package brief

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"renovisio_backend/logging"
)

// ErrEmptyBrief is returned when no PDF bytes were provided.
var ErrEmptyBrief = errors.New("empty design brief")

// ErrNoBriefText is returned when a PDF contains no extractable text.
var ErrNoBriefText = errors.New("no text content found in design brief")

// Config bounds how much of an uploaded brief is ingested. Briefs are
// advisory input to prompt building, so both limits are deliberately
// small: a prompt does not benefit from fifty pages of appendices.
type Config struct {
	// MaxPages limits extraction to the first N pages (0 for all)
	MaxPages int

	// MaxChars caps the folded text length
	MaxChars int

	// PageSeparator is inserted between page texts
	PageSeparator string
}

// DefaultConfig returns the standard ingestion limits.
func DefaultConfig() Config {
	return Config{
		MaxPages:      20,
		MaxChars:      4000,
		PageSeparator: "\n\n",
	}
}

// Extractor pulls plain text out of design-brief PDFs.
type Extractor struct {
	config Config
	logger *logging.Logger
}

// New creates an Extractor. Zero-valued config fields fall back to
// defaults.
func New(config Config, logger *logging.Logger) *Extractor {
	if config.PageSeparator == "" {
		config.PageSeparator = "\n\n"
	}
	if config.MaxChars <= 0 {
		config.MaxChars = DefaultConfig().MaxChars
	}
	return &Extractor{
		config: config,
		logger: logger.Named("brief"),
	}
}

// ExtractText extracts the text content from an uploaded PDF. Pages that
// fail to parse are skipped; the brief is best-effort input and a
// partially readable document is still useful.
func (e *Extractor) ExtractText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyBrief
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to parse design brief: %w", err)
	}

	totalPages := reader.NumPage()
	pagesToProcess := totalPages
	if e.config.MaxPages > 0 && e.config.MaxPages < totalPages {
		pagesToProcess = e.config.MaxPages
	}

	var sb strings.Builder
	extracted := 0
	skipped := 0
	for pageIndex := 1; pageIndex <= pagesToProcess; pageIndex++ {
		text, err := extractPage(reader, pageIndex)
		if err != nil {
			e.logger.Debug("skipping unreadable brief page",
				zap.Int("page", pageIndex))
			skipped++
			continue
		}
		if text == "" {
			skipped++
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(e.config.PageSeparator)
		}
		sb.WriteString(text)
		extracted++
	}

	text := sb.String()
	if text == "" {
		return "", ErrNoBriefText
	}
	if len(text) > e.config.MaxChars {
		text = truncateAtBoundary(text, e.config.MaxChars)
	}

	e.logger.Debug("design brief ingested",
		zap.Int("total_pages", totalPages),
		zap.Int("extracted_pages", extracted),
		zap.Int("skipped_pages", skipped),
		zap.Int("chars", len(text)))
	return text, nil
}

// FoldIntoConstraints merges brief text into the free-text constraints.
// Either side may be empty.
func FoldIntoConstraints(constraints, briefText string) string {
	constraints = strings.TrimSpace(constraints)
	briefText = strings.TrimSpace(briefText)
	switch {
	case briefText == "":
		return constraints
	case constraints == "":
		return "From the design brief: " + briefText
	default:
		return constraints + "\n\nFrom the design brief: " + briefText
	}
}

func extractPage(reader *pdf.Reader, pageIndex int) (string, error) {
	page := reader.Page(pageIndex)
	if page.V.IsNull() {
		return "", nil
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// truncateAtBoundary cuts text to at most maxChars, preferring the last
// whitespace before the cut so the fold never ends mid-word.
func truncateAtBoundary(text string, maxChars int) string {
	if maxChars <= 0 {
		return ""
	}
	if len(text) <= maxChars {
		return text
	}
	cut := text[:maxChars]
	if idx := strings.LastIndexAny(cut, " \t\n"); idx > maxChars/2 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut)
}
