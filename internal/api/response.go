package api

import (
	"encoding/json"
	"net/http"

	"okasion-watch/collector/internal/models/dtos"
)

func respondJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, dtos.ErrorResponse{Success: false, Error: message})
}
