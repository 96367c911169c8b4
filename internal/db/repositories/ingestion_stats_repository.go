package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"okasion-watch/collector/internal/models/entities"
)

const insertIngestionStat = `
	INSERT INTO ingestion_stats
		(cycle_id, total_vehicles, new_vehicles, deactivated,
		 min_price, max_price, model_counts,
		 started_at, finished_at, duration_ms)
	VALUES
		(:cycle_id, :total_vehicles, :new_vehicles, :deactivated,
		 :min_price, :max_price, :model_counts,
		 :started_at, :finished_at, :duration_ms)`

const selectRecentStats = `
	SELECT id, cycle_id, total_vehicles, new_vehicles, deactivated,
	       min_price, max_price, model_counts,
	       started_at, finished_at, duration_ms
	FROM ingestion_stats
	ORDER BY finished_at DESC
	LIMIT $1`

// IngestionStatsRepo appends one row per completed ingestion cycle.
type IngestionStatsRepo struct {
	db *sqlx.DB
}

// NewIngestionStatsRepo creates a new ingestion stats repository
func NewIngestionStatsRepo(db *sqlx.DB) *IngestionStatsRepo {
	return &IngestionStatsRepo{db: db}
}

// Record appends the stats row for a cycle. Rows are never updated.
func (r *IngestionStatsRepo) Record(ctx context.Context, stat *entities.IngestionStat) error {
	_, err := r.db.NamedExecContext(ctx, insertIngestionStat, stat)
	return err
}

// Recent returns the most recent cycle stats, newest first.
func (r *IngestionStatsRepo) Recent(ctx context.Context, limit int) ([]entities.IngestionStat, error) {
	if limit <= 0 {
		limit = 20
	}

	var stats []entities.IngestionStat
	err := r.db.SelectContext(ctx, &stats, selectRecentStats, limit)
	return stats, err
}
