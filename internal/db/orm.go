package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"okasion-watch/collector/internal/models/entities"
)

// ConnectORM opens the GORM handle backing the repositories and ensures the
// schema exists.
func ConnectORM(dsn string) (*gorm.DB, error) {
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := Migrate(conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// Migrate creates or updates the vehicles, model_index and ingestion_stats
// tables. Also used by tests against sqlite.
func Migrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(
		&entities.Vehicle{},
		&entities.ModelIndex{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	// ingestion_stats is written through sqlx; create it here so both
	// handles agree on the layout. Postgres-only DDL, skipped under the
	// sqlite test dialect.
	if conn.Dialector.Name() != "postgres" {
		return nil
	}
	return conn.Exec(`CREATE TABLE IF NOT EXISTS ingestion_stats (
		id BIGSERIAL PRIMARY KEY,
		cycle_id VARCHAR(64) NOT NULL,
		total_vehicles INT NOT NULL DEFAULT 0,
		new_vehicles INT NOT NULL DEFAULT 0,
		deactivated INT NOT NULL DEFAULT 0,
		min_price NUMERIC NOT NULL DEFAULT 0,
		max_price NUMERIC NOT NULL DEFAULT 0,
		model_counts TEXT NOT NULL DEFAULT '{}',
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL,
		duration_ms BIGINT NOT NULL DEFAULT 0
	)`).Error
}
