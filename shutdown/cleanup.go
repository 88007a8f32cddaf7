package shutdown

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"renovisio_backend/logging"
)

// CleanupArtifactTemp returns a cleanup function that removes stale
// ".artifact-*" temp files from the artifact directory. The store writes
// uploads to a temp file and renames on success, so anything still
// matching the pattern at shutdown is an abandoned partial write.
//
// Removal failures are logged, never returned: cleanup must not block
// shutdown.
func CleanupArtifactTemp(logger *logging.Logger, artifactDir string) Func {
	log := logger.Named("cleanup")
	return func(ctx context.Context) error {
		if artifactDir == "" {
			return nil
		}

		pattern := filepath.Join(artifactDir, ".artifact-*")
		matches, err := filepath.Glob(pattern)
		if err != nil {
			log.Error("failed to list artifact temp files",
				zap.String("pattern", pattern),
				zap.Error(err))
			return nil
		}
		if len(matches) == 0 {
			return nil
		}

		removed := 0
		failed := 0
		for _, match := range matches {
			select {
			case <-ctx.Done():
				log.Warn("cleanup interrupted",
					zap.Int("removed", removed),
					zap.Int("remaining", len(matches)-removed-failed))
				return nil
			default:
			}

			if err := os.Remove(match); err != nil {
				failed++
				log.Warn("failed to remove artifact temp file",
					zap.String("file", filepath.Base(match)),
					zap.Error(err))
				continue
			}
			removed++
		}

		log.Info("artifact temp cleanup complete",
			zap.Int("removed", removed),
			zap.Int("failed", failed))
		return nil
	}
}
