package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"okasion-watch/collector/internal/logging"
	"okasion-watch/collector/internal/models/dtos"
)

// IngestHandler handles POST /ingest: runs one ingestion cycle synchronously
// and reports its outcome. Only one cycle runs at a time; a trigger while a
// cycle is in flight is rejected rather than queued.
func (h *Handlers) IngestHandler(w http.ResponseWriter, r *http.Request) {
	var req dtos.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !h.ingestBusy.TryLock() {
		respondWithError(w, http.StatusConflict, "an ingestion cycle is already running")
		return
	}
	defer h.ingestBusy.Unlock()

	result, err := h.deps.Services.Pipeline.RunCycle(r.Context(), req.Filters)
	if err != nil {
		logging.Error("Triggered ingestion cycle failed", "error", err)
		respondWithError(w, http.StatusBadGateway, "ingestion cycle failed")
		return
	}

	message := fmt.Sprintf("cycle %s: %d vehicles, %d new, %d deactivated",
		result.CycleID, result.Total, result.New, result.Deactivated)
	if len(result.FailedModels) > 0 {
		message += fmt.Sprintf(", %d models failed", len(result.FailedModels))
	}

	respondJSON(w, http.StatusOK, dtos.IngestResponse{
		Success: true,
		Count:   result.Total,
		Message: message,
	})
}

// StatsHandler handles GET /stats: the most recent ingestion cycle records.
func (h *Handlers) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.deps.Repo.Stats.Recent(r.Context(), 20)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "stats lookup failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(stats),
		"stats":   stats,
	})
}
