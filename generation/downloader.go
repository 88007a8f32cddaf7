package generation

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Providers that respond with hosted URLs return temporary links that
// expire after about an hour, so URL-form results are fetched into memory
// immediately and never re-referenced.
//
// Thread safety: Downloader is safe for concurrent use; each download
// creates its own request.
type Downloader struct {
	client   *http.Client
	maxBytes int64
}

// DownloaderConfig holds configuration for the Downloader.
type DownloaderConfig struct {
	// HTTPClient for downloads; nil uses a default client
	HTTPClient *http.Client

	// Timeout for a single download
	Timeout time.Duration

	// MaxBytes caps the downloaded image size; 0 means no cap
	MaxBytes int64
}

// DefaultDownloaderConfig returns sensible defaults for fetching
// generated images.
func DefaultDownloaderConfig() DownloaderConfig {
	return DownloaderConfig{
		Timeout:  60 * time.Second,
		MaxBytes: 30 << 20,
	}
}

// NewDownloader creates an image downloader.
func NewDownloader(cfg DownloaderConfig) *Downloader {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultDownloaderConfig().Timeout
		}
		client = &http.Client{Timeout: timeout}
	}
	maxBytes := cfg.MaxBytes
	if maxBytes == 0 {
		maxBytes = DefaultDownloaderConfig().MaxBytes
	}
	return &Downloader{client: client, maxBytes: maxBytes}
}

// Download fetches the image at url and returns its bytes and MIME type.
func (d *Downloader) Download(ctx context.Context, url string) ([]byte, string, error) {
	if url == "" {
		return nil, "", fmt.Errorf("generation: download URL cannot be empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("generation: building download request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("generation: downloading image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("generation: image download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("generation: reading image body: %w", err)
	}
	if int64(len(data)) > d.maxBytes {
		return nil, "", fmt.Errorf("generation: downloaded image exceeds %d bytes", d.maxBytes)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("generation: downloaded image is empty")
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}
