package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"okasion-watch/collector/internal/api"
	"okasion-watch/collector/internal/config"
	"okasion-watch/collector/internal/jobs"
	"okasion-watch/collector/internal/logging"
	"okasion-watch/collector/internal/metrics"
	"okasion-watch/collector/internal/routes"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if err := logging.Init(cfg.AppEnv); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logging.Close()

	logging.Info("Collector starting up",
		"environment", cfg.AppEnv,
		"adapter", cfg.SourceAdapter,
	)

	registry := metrics.NewMetricsRegistry()

	deps, err := api.InitDependencies(cfg, registry)
	if err != nil {
		logging.Fatal("Failed to initialize dependencies", "error", err)
	}
	defer deps.Close()
	logging.Info("Connected to Postgres (sqlx + GORM)")

	upSince := time.Now()
	router := routes.RegisterRoutes(deps, upSince)

	// /metrics sits outside the Chi router so scrapes skip rate limiting
	// and request logging.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go jobs.RunScheduled(ctx, cfg, deps.Services.Pipeline)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logging.Info("Server starting", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logging.Fatal("Server failed", "error", err)
	}
	logging.Info("Server stopped")
}
