// Package pipeline runs the ingestion cycle: fetch the model index, walk
// each model's listings, normalize and upsert every vehicle, then reconcile
// the stored index against what was observed and mark the difference
// inactive. One cycle is one unit of consistency; models are processed
// strictly in order so partial failures stay scoped to a single model.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"okasion-watch/collector/internal/common"
	"okasion-watch/collector/internal/config"
	"okasion-watch/collector/internal/db/repositories"
	"okasion-watch/collector/internal/logging"
	"okasion-watch/collector/internal/metrics"
	"okasion-watch/collector/internal/models/dtos"
	"okasion-watch/collector/internal/models/entities"
	"okasion-watch/collector/internal/normalizer"
	"okasion-watch/collector/internal/parser"
	"okasion-watch/collector/internal/providers"
)

// CycleResult summarizes one completed ingestion cycle.
type CycleResult struct {
	CycleID      string         `json:"cycle_id"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
	Total        int            `json:"total_vehicles"`
	New          int            `json:"new_vehicles"`
	Deactivated  int            `json:"deactivated"`
	MinPrice     float64        `json:"min_price"`
	MaxPrice     float64        `json:"max_price"`
	ModelCounts  map[string]int `json:"model_counts"`
	FailedModels []string       `json:"failed_models,omitempty"`
}

// Pipeline orchestrates ingestion cycles against a single source adapter.
// Stats, cache and metrics are optional; a nil value disables that concern.
type Pipeline struct {
	// cycleMu serializes cycles. The scheduler and the trigger endpoint share
	// one Pipeline, and the upsert's new/updated accounting relies on a single
	// writer per vehicle_id.
	cycleMu sync.Mutex

	cfg      *config.Config
	adapter  providers.SourceAdapter
	vehicles *repositories.VehicleRepo
	index    *repositories.ModelIndexRepo
	stats    *repositories.IngestionStatsRepo
	cache    common.CacheInterface
	registry *metrics.MetricsRegistry
}

func New(
	cfg *config.Config,
	adapter providers.SourceAdapter,
	vehicles *repositories.VehicleRepo,
	index *repositories.ModelIndexRepo,
	stats *repositories.IngestionStatsRepo,
	cache common.CacheInterface,
	registry *metrics.MetricsRegistry,
) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		adapter:  adapter,
		vehicles: vehicles,
		index:    index,
		stats:    stats,
		cache:    cache,
		registry: registry,
	}
}

// RunCycle executes one full ingestion cycle. A model index failure is
// terminal; a single model's failure only excludes that model from the cycle
// and skips its reconciliation, so stale rows are never deactivated on the
// strength of a failed fetch.
func (p *Pipeline) RunCycle(ctx context.Context, filters *dtos.IngestFilters) (*CycleResult, error) {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	result := &CycleResult{
		CycleID:     uuid.NewString(),
		StartedAt:   time.Now(),
		ModelCounts: make(map[string]int),
	}
	log := logging.WithCycle(result.CycleID)
	log.Infow("Ingestion cycle started", "adapter", p.adapter.Name())

	entries, err := p.adapter.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch model index: %w", err)
	}
	entries = filterModels(entries, filters)
	log.Infow("Model index fetched", "models", len(entries))

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		count, isNew, err := p.ingestModel(ctx, entry, filters, result)
		if err != nil {
			log.Warnw("Model ingestion failed, skipping reconciliation",
				"model", entry.Name, "error", err)
			result.FailedModels = append(result.FailedModels, entry.Name)
			if p.registry != nil {
				p.registry.ModelFailuresTotal.WithLabelValues(entry.Name).Inc()
			}
			continue
		}
		result.ModelCounts[entry.Name] = count
		result.Total += count
		result.New += isNew
	}

	result.FinishedAt = time.Now()
	p.finishCycle(ctx, result, log)

	log.Infow("Ingestion cycle finished",
		"total", result.Total,
		"new", result.New,
		"deactivated", result.Deactivated,
		"failed_models", len(result.FailedModels),
		"duration", result.FinishedAt.Sub(result.StartedAt).String())
	return result, nil
}

// ingestModel fetches, enriches, normalizes and stores one model's listings,
// then reconciles the model index. Returns the observed vehicle count and
// how many of them were new.
func (p *Pipeline) ingestModel(
	ctx context.Context,
	entry parser.ModelEntry,
	filters *dtos.IngestFilters,
	result *CycleResult,
) (int, int, error) {
	records, err := p.adapter.ListVehicles(ctx, entry)
	if err != nil {
		return 0, 0, err
	}
	records = p.enrichDetails(ctx, records)

	nctx := normalizer.Context{
		Brand:        p.cfg.SourceBrand,
		ModelName:    entry.Name,
		BaseURL:      p.cfg.SourceBaseURL,
		ImageBaseURL: p.cfg.SourceImageURL,
	}

	observed := make([]string, 0, len(records))
	newCount := 0
	writes, writeFailures := 0, 0
	for _, rec := range records {
		vehicle, err := normalizer.Normalize(rec, nctx)
		if err != nil {
			if errors.Is(err, normalizer.ErrMissingIdentity) {
				logging.Warn("Record without usable identifier dropped", "model", entry.Name)
				continue
			}
			return 0, 0, err
		}

		// Price filters narrow what gets written, but the vehicle still
		// counts as observed so reconciliation does not deactivate it.
		observed = append(observed, vehicle.SourceID)
		if !priceWithin(vehicle.Price, filters) {
			continue
		}

		writes++
		isNew, err := p.vehicles.Upsert(ctx, vehicle)
		if err != nil {
			// A single bad row should not sink the model; the vehicle is
			// already in the observed set so reconciliation stays safe.
			writeFailures++
			logging.Error("Upsert failed", "vehicle_id", vehicle.VehicleID, "error", err)
			continue
		}
		if isNew {
			newCount++
		}
		trackPrice(result, vehicle.Price)
	}
	if writes > 0 && writeFailures == writes {
		// Every write failed: that is a dead store, not bad rows.
		return 0, 0, fmt.Errorf("all %d upserts failed for %s", writes, entry.Name)
	}

	if err := p.reconcileModel(ctx, entry.Name, observed, result); err != nil {
		return 0, 0, err
	}
	return len(observed), newCount, nil
}

// enrichDetails upgrades summary records to full detail records through the
// adapter, bounded by DetailWorkers. Placeholders and failed lookups keep
// their summary form; enrichment is best effort.
func (p *Pipeline) enrichDetails(ctx context.Context, records []dtos.RawRecord) []dtos.RawRecord {
	enriched := make([]dtos.RawRecord, len(records))
	copy(enriched, records)

	workers := p.cfg.DetailWorkers
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, rec := range records {
		if rec.Has("placeholder") {
			continue
		}
		sourceID := rec.String("idcoche", "id", "source_id", "listing_id")
		if sourceID == "" {
			continue
		}
		i, sourceID := i, sourceID
		g.Go(func() error {
			detail, err := p.adapter.FetchDetail(gctx, sourceID)
			if err != nil {
				if !errors.Is(err, providers.ErrDetailUnavailable) {
					logging.Warn("Detail fetch failed, keeping summary record",
						"source_id", sourceID, "error", err)
				}
				return nil
			}
			enriched[i] = detail
			return nil
		})
	}
	_ = g.Wait()
	return enriched
}

// reconcileModel deactivates vehicles that were known for this model but not
// observed in the current cycle, then replaces the stored index.
func (p *Pipeline) reconcileModel(
	ctx context.Context,
	modelName string,
	observed []string,
	result *CycleResult,
) error {
	previous, err := p.index.Read(ctx, modelName)
	if err != nil {
		return fmt.Errorf("read model index %s: %w", modelName, err)
	}
	if len(previous) == 0 {
		// No index row yet (first cycle, or the index table was rebuilt):
		// fall back to the active rows so disappeared vehicles still age out.
		previous, err = p.vehicles.ActiveSourceIDsByModel(ctx, modelName)
		if err != nil {
			return fmt.Errorf("active source ids %s: %w", modelName, err)
		}
	}

	seen := make(map[string]struct{}, len(observed))
	for _, id := range observed {
		seen[id] = struct{}{}
	}
	for _, sourceID := range previous {
		if _, ok := seen[sourceID]; ok {
			continue
		}
		// Deactivate by the upstream identifier, not a reconstructed
		// vehicle_id: an enriched record's model label may differ from the
		// index entry it was listed under.
		changed, err := p.vehicles.DeactivateBySource(ctx, sourceID)
		if err != nil {
			return fmt.Errorf("deactivate source %s: %w", sourceID, err)
		}
		if changed > 0 {
			result.Deactivated += int(changed)
			logging.Info("Vehicle deactivated", "source_id", sourceID, "model", modelName)
		}
	}

	return p.index.Replace(ctx, modelName, observed)
}

// finishCycle records stats, updates metrics and drops the query cache.
// Failures here are logged, never fatal: the vehicle data is already stored.
func (p *Pipeline) finishCycle(ctx context.Context, result *CycleResult, log *zap.SugaredLogger) {
	if p.stats != nil {
		counts, _ := json.Marshal(result.ModelCounts)
		stat := &entities.IngestionStat{
			CycleID:       result.CycleID,
			TotalVehicles: result.Total,
			NewVehicles:   result.New,
			Deactivated:   result.Deactivated,
			MinPrice:      result.MinPrice,
			MaxPrice:      result.MaxPrice,
			ModelCounts:   string(counts),
			StartedAt:     result.StartedAt,
			FinishedAt:    result.FinishedAt,
			DurationMs:    result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		}
		if err := p.stats.Record(ctx, stat); err != nil {
			log.Warnw("Failed to record cycle stats", "error", err)
		}
	}

	if p.registry != nil {
		p.registry.CycleDuration.Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())
		p.registry.VehiclesUpserted.Add(float64(result.Total))
		p.registry.VehiclesNew.Add(float64(result.New))
		p.registry.VehiclesDeactivated.Add(float64(result.Deactivated))
		p.registry.ActiveVehicles.Set(float64(result.Total))
	}

	if p.cache != nil {
		if err := p.cache.Flush(); err != nil {
			log.Warnw("Failed to flush query cache", "error", err)
		}
	}
}

func filterModels(entries []parser.ModelEntry, filters *dtos.IngestFilters) []parser.ModelEntry {
	if filters == nil || len(filters.Models) == 0 {
		return entries
	}
	wanted := make(map[string]struct{}, len(filters.Models))
	for _, m := range filters.Models {
		wanted[strings.ToLower(m)] = struct{}{}
	}
	kept := entries[:0:0]
	for _, e := range entries {
		if _, ok := wanted[strings.ToLower(e.Name)]; ok {
			kept = append(kept, e)
		}
	}
	return kept
}

func priceWithin(price float64, filters *dtos.IngestFilters) bool {
	if filters == nil {
		return true
	}
	if filters.MinPrice != nil && price < *filters.MinPrice {
		return false
	}
	if filters.MaxPrice != nil && price > *filters.MaxPrice {
		return false
	}
	return true
}

func trackPrice(result *CycleResult, price float64) {
	if price <= 0 {
		return
	}
	if result.MinPrice == 0 || price < result.MinPrice {
		result.MinPrice = price
	}
	if price > result.MaxPrice {
		result.MaxPrice = price
	}
}
