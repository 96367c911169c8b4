package providers

import (
	"context"
	"fmt"
	"net/url"

	"okasion-watch/collector/internal/config"
	"okasion-watch/collector/internal/fetcher"
	"okasion-watch/collector/internal/models/dtos"
	"okasion-watch/collector/internal/parser"
)

// HTMLAdapter scrapes the public pages directly. Used when the async
// endpoint rejects scripted POSTs; the parser's inline-script and selector
// strategies do the heavy lifting.
type HTMLAdapter struct {
	baseURL string
	fetcher *fetcher.Fetcher
}

// NewHTMLAdapter creates the markup-backed source adapter.
func NewHTMLAdapter(cfg *config.Config, f *fetcher.Fetcher) *HTMLAdapter {
	return &HTMLAdapter{
		baseURL: cfg.SourceBaseURL,
		fetcher: f,
	}
}

// Name returns the adapter identifier
func (a *HTMLAdapter) Name() string {
	return "html"
}

// ListModels loads the landing page and groups whatever records the parser
// extracts by model.
func (a *HTMLAdapter) ListModels(ctx context.Context) ([]parser.ModelEntry, error) {
	body, err := a.fetcher.Fetch(ctx, fetcher.Request{URL: a.baseURL})
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}

	entries, err := parser.ParseModelIndex(body)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	return entries, nil
}

// ListVehicles loads the model page.
func (a *HTMLAdapter) ListVehicles(ctx context.Context, entry parser.ModelEntry) ([]dtos.RawRecord, error) {
	if len(entry.Vehicles) > 0 {
		return entry.Vehicles, nil
	}

	body, err := a.fetcher.Fetch(ctx, fetcher.Request{
		URL:   a.baseURL,
		Query: url.Values{"modelo": {entry.Name}},
	})
	if err != nil {
		return nil, fmt.Errorf("list vehicles for %s: %w", entry.Name, err)
	}

	records, err := parser.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("list vehicles for %s: %w", entry.Name, err)
	}
	return records, nil
}

// FetchDetail loads the vehicle detail page.
func (a *HTMLAdapter) FetchDetail(ctx context.Context, sourceID string) (dtos.RawRecord, error) {
	body, err := a.fetcher.Fetch(ctx, fetcher.Request{
		URL:   a.baseURL,
		Query: url.Values{"idcoche": {sourceID}},
	})
	if err != nil {
		return nil, fmt.Errorf("detail for %s: %w", sourceID, err)
	}

	records, err := parser.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("detail for %s: %w", sourceID, err)
	}
	return records[0], nil
}
