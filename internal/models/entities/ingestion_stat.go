package entities

import "time"

// IngestionStat is the append-only record written at the end of every
// ingestion cycle. Stored via sqlx, one row per cycle.
type IngestionStat struct {
	ID            int64     `db:"id" json:"id"`
	CycleID       string    `db:"cycle_id" json:"cycle_id"`
	TotalVehicles int       `db:"total_vehicles" json:"total_vehicles"`
	NewVehicles   int       `db:"new_vehicles" json:"new_vehicles"`
	Deactivated   int       `db:"deactivated" json:"deactivated"`
	MinPrice      float64   `db:"min_price" json:"min_price"`
	MaxPrice      float64   `db:"max_price" json:"max_price"`
	ModelCounts   string    `db:"model_counts" json:"model_counts"` // JSON object, model -> count
	StartedAt     time.Time `db:"started_at" json:"started_at"`
	FinishedAt    time.Time `db:"finished_at" json:"finished_at"`
	DurationMs    int64     `db:"duration_ms" json:"duration_ms"`
}

// ServiceStatus describes a single dependency in the health check response.
type ServiceStatus struct {
	Status  string `json:"status"`
	Details string `json:"details"`
}

// HealthCheckResponse is the payload returned by GET /healthCheck.
type HealthCheckResponse struct {
	Status   string                   `json:"status"`
	Uptime   string                   `json:"uptime"`
	Services map[string]ServiceStatus `json:"services"`
}
