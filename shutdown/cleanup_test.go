package shutdown

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestCleanupArtifactTempRemovesStaleFiles(t *testing.T) {
	dir := t.TempDir()

	stale := []string{".artifact-123", ".artifact-abc"}
	for _, name := range stale {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("partial"), 0o644); err != nil {
			t.Fatalf("seeding temp file: %v", err)
		}
	}
	keep := filepath.Join(dir, "aabbcc.png")
	if err := os.WriteFile(keep, []byte("stored artifact"), 0o644); err != nil {
		t.Fatalf("seeding artifact: %v", err)
	}

	fn := CleanupArtifactTemp(testLogger(), dir)
	if err := fn(context.Background()); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}

	for _, name := range stale {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("stale file %s not removed", name)
		}
	}
	if _, err := os.Stat(keep); err != nil {
		t.Errorf("stored artifact must survive cleanup: %v", err)
	}
}

func TestCleanupArtifactTempEmptyDir(t *testing.T) {
	fn := CleanupArtifactTemp(testLogger(), t.TempDir())
	if err := fn(context.Background()); err != nil {
		t.Errorf("cleanup of empty dir failed: %v", err)
	}
}

func TestCleanupArtifactTempNoDirConfigured(t *testing.T) {
	fn := CleanupArtifactTemp(testLogger(), "")
	if err := fn(context.Background()); err != nil {
		t.Errorf("cleanup with no dir failed: %v", err)
	}
}

func TestCleanupArtifactTempMissingDir(t *testing.T) {
	fn := CleanupArtifactTemp(testLogger(), "/nonexistent/artifact/dir")
	if err := fn(context.Background()); err != nil {
		t.Errorf("cleanup of missing dir failed: %v", err)
	}
}
