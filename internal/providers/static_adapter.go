package providers

import (
	"context"
	"fmt"
	"strings"

	"okasion-watch/collector/internal/config"
	"okasion-watch/collector/internal/models/dtos"
	"okasion-watch/collector/internal/normalizer"
	"okasion-watch/collector/internal/parser"
)

// staticModels is the last model table observed on the site, kept as an
// offline fallback when every network strategy is blocked. Counts and
// prices go stale; identities stay deterministic.
var staticModels = []struct {
	Name  string
	Price string
	Count int
}{
	{"Ceed", "12.999", 129},
	{"Ceed Sportswagon", "15.999", 7},
	{"EV6", "28.990", 43},
	{"EV9", "61.000", 6},
	{"Niro", "17.490", 121},
	{"Niro EV", "21.390", 40},
	{"Picanto", "9.990", 57},
	{"ProCeed", "15.990", 1},
	{"Rio", "12.200", 19},
	{"Sorento", "35.390", 20},
	{"Soul Ev", "23.350", 3},
	{"Sportage", "17.990", 191},
	{"Stinger", "42.950", 1},
	{"Stonic", "13.000", 155},
	{"XCeed", "15.999", 182},
}

// placeholdersPerModel caps the synthesized records per model so an offline
// run does not flood the store with hundreds of identical placeholders.
const placeholdersPerModel = 20

// StaticAdapter serves the fixed model table without touching the network.
// Also the adapter of choice in tests.
type StaticAdapter struct{}

// NewStaticAdapter creates the offline fallback adapter.
func NewStaticAdapter(_ *config.Config) *StaticAdapter {
	return &StaticAdapter{}
}

// Name returns the adapter identifier
func (a *StaticAdapter) Name() string {
	return "static"
}

// ListModels returns the fixed table.
func (a *StaticAdapter) ListModels(_ context.Context) ([]parser.ModelEntry, error) {
	entries := make([]parser.ModelEntry, 0, len(staticModels))
	for _, m := range staticModels {
		entries = append(entries, parser.ModelEntry{
			Name:  m.Name,
			Price: normalizer.ParsePrice(m.Price),
			Count: m.Count,
		})
	}
	return entries, nil
}

// ListVehicles synthesizes placeholder records from the model's count, the
// same shape the parser produces for count-only index entries.
func (a *StaticAdapter) ListVehicles(_ context.Context, entry parser.ModelEntry) ([]dtos.RawRecord, error) {
	count := entry.Count
	if count > placeholdersPerModel {
		count = placeholdersPerModel
	}

	slug := strings.ToLower(strings.ReplaceAll(entry.Name, " ", "_"))
	records := make([]dtos.RawRecord, 0, count)
	for i := 0; i < count; i++ {
		records = append(records, dtos.RawRecord{
			"idcoche":     fmt.Sprintf("%s-%d", slug, i),
			"modelo":      entry.Name,
			"precio":      entry.Price,
			"placeholder": true,
		})
	}
	return records, nil
}

// FetchDetail is not available offline.
func (a *StaticAdapter) FetchDetail(_ context.Context, _ string) (dtos.RawRecord, error) {
	return nil, ErrDetailUnavailable
}
