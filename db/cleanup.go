package db

import (
	"context"
	"fmt"
	"time"
)

// CleanupResult contains statistics about one retention pass.
type CleanupResult struct {
	// MetricsDeleted is the number of pipeline_metrics rows removed
	MetricsDeleted int64
	// Duration is how long the cleanup took
	Duration time.Duration
}

// Cleanup deletes pipeline metrics older than retentionDays and reclaims
// disk space. Visualization records are kept indefinitely; only the
// metrics table has a retention policy.
func (d *Database) Cleanup(retentionDays int) (CleanupResult, error) {
	return d.CleanupWithContext(context.Background(), retentionDays)
}

// CleanupWithContext is the context-aware retention pass. It rolls back
// on cancellation.
func (d *Database) CleanupWithContext(ctx context.Context, retentionDays int) (CleanupResult, error) {
	start := time.Now()
	result := CleanupResult{}

	if retentionDays < 0 {
		return result, fmt.Errorf("retentionDays must be non-negative, got %d", retentionDays)
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return result, fmt.Errorf("database connection is closed")
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, fmt.Sprintf(
		"DELETE FROM pipeline_metrics WHERE created_at < datetime('now', '-%d days')",
		retentionDays,
	))
	if err != nil {
		return result, fmt.Errorf("failed to delete expired metrics: %w", err)
	}
	result.MetricsDeleted, _ = res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("failed to commit cleanup: %w", err)
	}

	// VACUUM cannot run inside a transaction.
	if result.MetricsDeleted > 0 {
		if _, err := d.db.ExecContext(ctx, "VACUUM"); err != nil {
			return result, fmt.Errorf("failed to vacuum database: %w", err)
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

// CleanupSchedulerConfig configures the periodic retention pass.
type CleanupSchedulerConfig struct {
	// RetentionDays is how long metrics rows are kept
	RetentionDays int
	// Interval between passes
	Interval time.Duration
}

// DefaultCleanupSchedulerConfig returns the default schedule: 90 days of
// metrics, checked daily.
func DefaultCleanupSchedulerConfig() CleanupSchedulerConfig {
	return CleanupSchedulerConfig{
		RetentionDays: 90,
		Interval:      24 * time.Hour,
	}
}

// StartCleanupScheduler runs retention passes on the given interval until
// the context is cancelled. Failures are reported through onResult, which
// may be nil.
func (d *Database) StartCleanupScheduler(ctx context.Context, config CleanupSchedulerConfig, onResult func(CleanupResult, error)) {
	go func() {
		ticker := time.NewTicker(config.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				result, err := d.CleanupWithContext(ctx, config.RetentionDays)
				if onResult != nil {
					onResult(result, err)
				}
			}
		}
	}()
}
