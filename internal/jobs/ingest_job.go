package jobs

import (
	"context"
	"time"

	"okasion-watch/collector/internal/config"
	"okasion-watch/collector/internal/logging"
	"okasion-watch/collector/internal/pipeline"
)

// Dealership listings only move while dealers are at their desks; outside
// this window a cycle would just re-confirm the previous one.
const (
	workHoursStart = 8
	workHoursEnd   = 21
)

// RunScheduled runs ingestion cycles on CheckInterval until the context is
// cancelled. The first cycle starts immediately.
func RunScheduled(ctx context.Context, cfg *config.Config, pipe *pipeline.Pipeline) {
	logging.Info("Ingestion scheduler started",
		"interval", cfg.CheckInterval.String(),
		"work_hours_only", cfg.WorkHoursOnly,
	)

	runOnce(ctx, cfg, pipe)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info("Ingestion scheduler stopped")
			return
		case <-ticker.C:
			runOnce(ctx, cfg, pipe)
		}
	}
}

func runOnce(ctx context.Context, cfg *config.Config, pipe *pipeline.Pipeline) {
	if cfg.WorkHoursOnly && !withinWorkHours(time.Now()) {
		logging.Debug("Skipping cycle outside work hours")
		return
	}

	if _, err := pipe.RunCycle(ctx, nil); err != nil {
		logging.Error("Scheduled ingestion cycle failed", "error", err)
	}
}

func withinWorkHours(now time.Time) bool {
	h := now.Hour()
	return h >= workHoursStart && h < workHoursEnd
}
