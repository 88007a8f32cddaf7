// Package store provides durable artifact storage for original photos and
// generated concept images. The pipeline only ever writes; reads go
// through the public URL surface.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"renovisio_backend/logging"
)

// ErrEmptyArtifact is returned when Put is called with no data.
var ErrEmptyArtifact = errors.New("store: artifact data is empty")

// ArtifactStore persists image artifacts and returns a public URL for
// each. Put must be safe for concurrent use.
type ArtifactStore interface {
	Put(ctx context.Context, data []byte, mimeType string) (string, error)
}

// DiskStore is an ArtifactStore backed by a local directory served at a
// base URL. Artifacts are content-addressed: the key is the SHA-256 of
// the data, so duplicate writes are idempotent and partial writes never
// clobber a complete artifact.
type DiskStore struct {
	dir     string
	baseURL string
	logger  *logging.Logger
}

// NewDiskStore creates a DiskStore rooted at dir. The directory is
// created if missing. baseURL is the public prefix under which dir is
// served, without a trailing slash.
func NewDiskStore(dir, baseURL string, logger *logging.Logger) (*DiskStore, error) {
	if dir == "" {
		return nil, errors.New("store: artifact directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: creating artifact directory: %w", err)
	}
	return &DiskStore{
		dir:     dir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger.Named("store"),
	}, nil
}

// Put writes the artifact and returns its public URL. The write goes
// through a temp file and rename so a crash never leaves a readable
// half-written artifact under its final name.
func (s *DiskStore) Put(ctx context.Context, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyArtifact
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("store: %w", err)
	}

	start := time.Now()
	sum := sha256.Sum256(data)
	key := hex.EncodeToString(sum[:]) + extensionFor(mimeType)
	path := filepath.Join(s.dir, key)

	if _, err := os.Stat(path); err == nil {
		return s.urlFor(key), nil
	}

	tmp, err := os.CreateTemp(s.dir, ".artifact-*")
	if err != nil {
		return "", fmt.Errorf("store: creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("store: writing artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("store: closing artifact: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("store: placing artifact: %w", err)
	}

	s.logger.Debug("artifact stored",
		zap.String("key", key),
		zap.Int("bytes", len(data)),
		logging.LatencyField(time.Since(start)))
	return s.urlFor(key), nil
}

func (s *DiskStore) urlFor(key string) string {
	if s.baseURL == "" {
		return "/artifacts/" + key
	}
	return s.baseURL + "/" + key
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".bin"
	}
}
