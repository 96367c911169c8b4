// Package providers contains the pluggable upstream source adapters. The
// outlet site has been scraped through an undocumented JSON endpoint, plain
// HTML, and a hardcoded fallback table at different points of its life;
// each of those strategies is one SourceAdapter implementation, selected by
// configuration rather than scattered through the pipeline.
package providers

import (
	"context"
	"errors"
	"fmt"

	"okasion-watch/collector/internal/config"
	"okasion-watch/collector/internal/fetcher"
	"okasion-watch/collector/internal/models/dtos"
	"okasion-watch/collector/internal/parser"
)

// ErrDetailUnavailable marks adapters that have no per-vehicle detail
// endpoint; the pipeline keeps the summary record instead.
var ErrDetailUnavailable = errors.New("detail endpoint not available for this adapter")

// SourceAdapter abstracts one upstream collection strategy.
type SourceAdapter interface {
	// Name returns the adapter identifier used in config and logs.
	Name() string

	// ListModels fetches the top-level listing: per-model aggregate counts
	// and flat prices, possibly with itemized vehicles.
	ListModels(ctx context.Context) ([]parser.ModelEntry, error)

	// ListVehicles fetches the raw records for one model.
	ListVehicles(ctx context.Context, entry parser.ModelEntry) ([]dtos.RawRecord, error)

	// FetchDetail fetches the full attribute set for a single vehicle.
	FetchDetail(ctx context.Context, sourceID string) (dtos.RawRecord, error)
}

// ForConfig builds the adapter selected by SOURCE_ADAPTER.
func ForConfig(cfg *config.Config, f *fetcher.Fetcher) (SourceAdapter, error) {
	switch cfg.SourceAdapter {
	case "api", "":
		return NewOutletAPIAdapter(cfg, f), nil
	case "html":
		return NewHTMLAdapter(cfg, f), nil
	case "static":
		return NewStaticAdapter(cfg), nil
	default:
		return nil, fmt.Errorf("unknown source adapter %q", cfg.SourceAdapter)
	}
}
