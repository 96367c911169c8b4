package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"okasion-watch/collector/internal/config"
	"okasion-watch/collector/internal/fetcher"
	"okasion-watch/collector/internal/models/dtos"
	"okasion-watch/collector/internal/parser"
)

// listingPayload is the filter envelope the async endpoint expects on the
// model listing call.
type listingPayload struct {
	Filter     listingFilter     `json:"filter"`
	Pagination listingPagination `json:"pagination"`
	Sort       listingSort       `json:"sort"`
}

type listingFilter struct {
	Price   rangeFilter `json:"price"`
	Mileage rangeFilter `json:"mileage"`
	Models  []string    `json:"models,omitempty"`
}

type rangeFilter struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

type listingPagination struct {
	Page int `json:"page"`
	Size int `json:"size"`
}

type listingSort struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// OutletAPIAdapter talks to the site's undocumented async endpoint: a JSON
// POST for listings and a form POST ("accion=actualizarFicha") for
// per-vehicle detail.
type OutletAPIAdapter struct {
	baseURL string
	apiURL  string
	fetcher *fetcher.Fetcher
}

// NewOutletAPIAdapter creates the API-backed source adapter.
func NewOutletAPIAdapter(cfg *config.Config, f *fetcher.Fetcher) *OutletAPIAdapter {
	return &OutletAPIAdapter{
		baseURL: cfg.SourceBaseURL,
		apiURL:  cfg.SourceAPIURL,
		fetcher: f,
	}
}

// Name returns the adapter identifier
func (a *OutletAPIAdapter) Name() string {
	return "api"
}

// ListModels fetches the unfiltered listing and interprets it as a model
// index.
func (a *OutletAPIAdapter) ListModels(ctx context.Context) ([]parser.ModelEntry, error) {
	body, err := a.fetcher.Fetch(ctx, fetcher.Request{
		URL:    a.apiURL,
		Method: http.MethodPost,
		JSON:   a.payload(nil),
		Header: a.xhrHeaders(),
	})
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}

	entries, err := parser.ParseModelIndex(body)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	return entries, nil
}

// ListVehicles fetches the listing filtered down to one model. Entries that
// already arrived itemized skip the extra round trip.
func (a *OutletAPIAdapter) ListVehicles(ctx context.Context, entry parser.ModelEntry) ([]dtos.RawRecord, error) {
	if len(entry.Vehicles) > 0 {
		return entry.Vehicles, nil
	}

	body, err := a.fetcher.Fetch(ctx, fetcher.Request{
		URL:    a.apiURL,
		Method: http.MethodPost,
		JSON:   a.payload([]string{entry.Name}),
		Header: a.xhrHeaders(),
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

// FetchDetail posts the actualizarFicha action for one vehicle.
func (a *OutletAPIAdapter) FetchDetail(ctx context.Context, sourceID string) (dtos.RawRecord, error) {
	body, err := a.fetcher.Fetch(ctx, fetcher.Request{
		URL:    a.apiURL,
		Method: http.MethodPost,
		Form: url.Values{
			"accion":  {"actualizarFicha"},
			"idcoche": {sourceID},
		},
		Header: a.xhrHeaders(),
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

func (a *OutletAPIAdapter) payload(models []string) listingPayload {
	return listingPayload{
		Filter: listingFilter{
			Price:   rangeFilter{Min: 0, Max: 100000},
			Mileage: rangeFilter{Min: 0, Max: 200000},
			Models:  models,
		},
		Pagination: listingPagination{Page: 1, Size: 100},
		Sort:       listingSort{Field: "price", Direction: "ASC"},
	}
}

func (a *OutletAPIAdapter) xhrHeaders() http.Header {
	h := http.Header{}
	h.Set("X-Requested-With", "XMLHttpRequest")
	h.Set("Referer", a.baseURL)
	return h
}
