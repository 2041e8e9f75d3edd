package core

// scheduler.go runs periodic maintenance for the audit trail.
//
// Audit rows older than the retention window are deleted in batches. The job
// runs once at start and then every CheckInterval until ctx is cancelled.
// Failures are logged and retried on the next tick.

import (
	"context"
	"log/slog"
	"time"
)

// AuditPurger deletes audit rows created before cutoff, at most batchSize
// per call, and reports how many it removed.
type AuditPurger interface {
	PurgeAudit(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}

// RetentionConfig holds configuration for the audit retention scheduler.
type RetentionConfig struct {
	RetentionDays int           // Days to keep audit rows (default: 365)
	BatchSize     int           // Rows per delete batch (default: 5000)
	CheckInterval time.Duration // How often to run (default: 24h)
}

func (c RetentionConfig) withDefaults() RetentionConfig {
	if c.RetentionDays <= 0 {
		c.RetentionDays = 365
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 5000
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 24 * time.Hour
	}
	return c
}

// StartRetentionScheduler blocks, purging expired audit rows on every tick.
// Run it in its own goroutine.
func StartRetentionScheduler(ctx context.Context, purger AuditPurger, cfg RetentionConfig) {
	cfg = cfg.withDefaults()
	slog.Info("audit retention scheduler started",
		"retention_days", cfg.RetentionDays,
		"batch_size", cfg.BatchSize,
		"interval", cfg.CheckInterval,
	)

	runRetentionJob(ctx, purger, cfg, time.Now())

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("audit retention scheduler stopped")
			return
		case now := <-ticker.C:
			runRetentionJob(ctx, purger, cfg, now)
		}
	}
}

// runRetentionJob purges until a batch comes back short. It returns the total
// number of rows removed.
func runRetentionJob(ctx context.Context, purger AuditPurger, cfg RetentionConfig, now time.Time) int64 {
	start := time.Now()
	cutoff := now.AddDate(0, 0, -cfg.RetentionDays)

	var total int64
	for ctx.Err() == nil {
		n, err := purger.PurgeAudit(ctx, cutoff, cfg.BatchSize)
		if err != nil {
			slog.Error("audit purge failed", "error", err)
			break
		}
		total += n
		if n < int64(cfg.BatchSize) {
			break
		}
	}

	slog.Info("audit retention job completed",
		"entries_purged", total,
		"cutoff", cutoff.Format(time.RFC3339),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return total
}
