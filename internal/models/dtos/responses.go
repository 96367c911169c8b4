package dtos

import "okasion-watch/collector/internal/models/entities"

// VehicleListResponse is the payload for GET /vehicles.
type VehicleListResponse struct {
	Success  bool               `json:"success"`
	Count    int                `json:"count"`
	Vehicles []entities.Vehicle `json:"vehicles"`
}

// VehicleResponse is the payload for GET /vehicles/{id}.
type VehicleResponse struct {
	Success bool              `json:"success"`
	Vehicle *entities.Vehicle `json:"vehicle"`
}

// IngestResponse is the payload for POST /ingest.
type IngestResponse struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Message string `json:"message"`
}

// ErrorResponse is the common error payload. The error string is a short
// description, never an internal stack trace.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// IngestRequest is the optional body for POST /ingest.
type IngestRequest struct {
	Filters *IngestFilters `json:"filters,omitempty"`
}

// IngestFilters narrows an ingestion cycle to a subset of models and an
// optional price window. Nil bounds are unset.
type IngestFilters struct {
	Models   []string `json:"models,omitempty"`
	MinPrice *float64 `json:"min_price,omitempty"`
	MaxPrice *float64 `json:"max_price,omitempty"`
}

// VehicleQuery captures the query parameters of GET /vehicles.
type VehicleQuery struct {
	MinPrice        *float64
	MaxPrice        *float64
	Brand           string
	Model           string
	Limit           int
	IncludeInactive bool
}
