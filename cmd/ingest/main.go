package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"okasion-watch/collector/internal/api"
	"okasion-watch/collector/internal/config"
	"okasion-watch/collector/internal/logging"
	"okasion-watch/collector/internal/metrics"
)

// One-shot mode: run a single ingestion cycle, then print the vehicles in
// the requested budget window as JSON. Useful from cron or the terminal
// without keeping the API server around.
func main() {
	minPrice := flag.Float64("min", 10000, "lower price bound for the report")
	maxPrice := flag.Float64("max", 15000, "upper price bound for the report")
	limit := flag.Int("limit", 1000, "maximum rows in the report")
	skipIngest := flag.Bool("report-only", false, "skip the ingestion cycle, only query")
	timeout := flag.Duration("timeout", 15*time.Minute, "overall deadline")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if err := logging.Init(cfg.AppEnv); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logging.Close()

	deps, err := api.InitDependencies(cfg, metrics.NewMetricsRegistry())
	if err != nil {
		logging.Fatal("Failed to initialize dependencies", "error", err)
	}
	defer deps.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if !*skipIngest {
		result, err := deps.Services.Pipeline.RunCycle(ctx, nil)
		if err != nil {
			logging.Fatal("Ingestion cycle failed", "error", err)
		}
		logging.Info("Ingestion cycle finished",
			"cycle_id", result.CycleID,
			"total", result.Total,
			"new", result.New,
			"deactivated", result.Deactivated,
		)
	}

	vehicles, err := deps.Repo.Vehicles.QueryByPriceRange(ctx, *minPrice, *maxPrice, *limit, false)
	if err != nil {
		logging.Fatal("Budget query failed", "error", err)
	}

	logging.Info("Budget report", "min", *minPrice, "max", *maxPrice, "matches", len(vehicles))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(vehicles); err != nil {
		logging.Fatal("Failed to encode report", "error", err)
	}
}
