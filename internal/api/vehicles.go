package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"okasion-watch/collector/internal/models/dtos"
	"okasion-watch/collector/internal/models/entities"
)

const vehicleCacheTTL = 60 * time.Second

// ListVehiclesHandler handles GET /vehicles.
// Query parameters: min_price, max_price, brand, model, limit, include_inactive.
func (h *Handlers) ListVehiclesHandler(w http.ResponseWriter, r *http.Request) {
	query, err := parseVehicleQuery(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	load := func() (any, error) {
		return h.deps.Repo.Vehicles.Search(r.Context(), query)
	}

	var vehicles []entities.Vehicle
	if h.deps.Services.Cache != nil {
		cached, err := h.deps.Services.Cache.GetOrSet(cacheKey(query), vehicleCacheTTL, load)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "vehicle query failed")
			return
		}
		// The Redis implementation round-trips through JSON, so a cached hit
		// may come back untyped. Serve it verbatim rather than re-decoding.
		if typed, ok := cached.([]entities.Vehicle); ok {
			vehicles = typed
		} else {
			respondJSON(w, http.StatusOK, map[string]interface{}{
				"success":  true,
				"count":    cachedLen(cached),
				"vehicles": cached,
			})
			return
		}
	} else {
		loaded, err := load()
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "vehicle query failed")
			return
		}
		vehicles = loaded.([]entities.Vehicle)
	}

	respondJSON(w, http.StatusOK, dtos.VehicleListResponse{
		Success:  true,
		Count:    len(vehicles),
		Vehicles: vehicles,
	})
}

// GetVehicleHandler handles GET /vehicles/{id}.
func (h *Handlers) GetVehicleHandler(w http.ResponseWriter, r *http.Request) {
	vehicleID := chi.URLParam(r, "id")

	vehicle, err := h.deps.Repo.Vehicles.FindByID(r.Context(), vehicleID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "vehicle lookup failed")
		return
	}
	if vehicle == nil {
		respondWithError(w, http.StatusNotFound, "vehicle not found")
		return
	}

	respondJSON(w, http.StatusOK, dtos.VehicleResponse{Success: true, Vehicle: vehicle})
}

func parseVehicleQuery(r *http.Request) (dtos.VehicleQuery, error) {
	q := dtos.VehicleQuery{
		Brand: r.URL.Query().Get("brand"),
		Model: r.URL.Query().Get("model"),
	}

	if raw := r.URL.Query().Get("min_price"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return q, fmt.Errorf("invalid min_price %q", raw)
		}
		q.MinPrice = &v
	}
	if raw := r.URL.Query().Get("max_price"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return q, fmt.Errorf("invalid max_price %q", raw)
		}
		q.MaxPrice = &v
	}
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
		return q, fmt.Errorf("min_price exceeds max_price")
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return q, fmt.Errorf("invalid limit %q", raw)
		}
		q.Limit = v
	}
	if raw := r.URL.Query().Get("include_inactive"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return q, fmt.Errorf("invalid include_inactive %q", raw)
		}
		q.IncludeInactive = v
	}

	return q, nil
}

func cacheKey(q dtos.VehicleQuery) string {
	min, max := "", ""
	if q.MinPrice != nil {
		min = strconv.FormatFloat(*q.MinPrice, 'f', -1, 64)
	}
	if q.MaxPrice != nil {
		max = strconv.FormatFloat(*q.MaxPrice, 'f', -1, 64)
	}
	return fmt.Sprintf("vehicles:%s:%s:%s:%s:%d:%t",
		min, max, q.Brand, q.Model, q.Limit, q.IncludeInactive)
}

func cachedLen(v interface{}) int {
	if arr, ok := v.([]interface{}); ok {
		return len(arr)
	}
	return 0
}
