package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	gormlib "gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"okasion-watch/collector/internal/config"
	"okasion-watch/collector/internal/db"
	"okasion-watch/collector/internal/db/repositories"
	"okasion-watch/collector/internal/models/dtos"
	"okasion-watch/collector/internal/parser"
	"okasion-watch/collector/internal/providers"
)

// fakeAdapter serves canned listings keyed by model name.
type fakeAdapter struct {
	models       []parser.ModelEntry
	vehicles     map[string][]dtos.RawRecord
	details      map[string]dtos.RawRecord
	failModels   map[string]bool
	failIndex    bool
	detailCalls  int
	listingCalls int
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) ListModels(ctx context.Context) ([]parser.ModelEntry, error) {
	if f.failIndex {
		return nil, errors.New("upstream index down")
	}
	return f.models, nil
}

func (f *fakeAdapter) ListVehicles(ctx context.Context, entry parser.ModelEntry) ([]dtos.RawRecord, error) {
	f.listingCalls++
	if f.failModels[entry.Name] {
		return nil, errors.New("upstream listing down")
	}
	return f.vehicles[entry.Name], nil
}

func (f *fakeAdapter) FetchDetail(ctx context.Context, sourceID string) (dtos.RawRecord, error) {
	f.detailCalls++
	if detail, ok := f.details[sourceID]; ok {
		return detail, nil
	}
	return nil, providers.ErrDetailUnavailable
}

func record(id, model, price string) dtos.RawRecord {
	return dtos.RawRecord{"idcoche": id, "modelo": model, "precio": price}
}

func testPipeline(t *testing.T, adapter providers.SourceAdapter) (*Pipeline, *repositories.VehicleRepo) {
	t.Helper()

	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	conn, err := gormlib.Open(sqlite.Open(dsn), &gormlib.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))

	cfg := &config.Config{
		SourceBrand:    "KIA",
		SourceBaseURL:  "https://example.test/kia/",
		SourceImageURL: "https://example.test/kia/imagenes/",
		DetailWorkers:  2,
	}
	vehicles := repositories.NewVehicleRepo(conn)
	index := repositories.NewModelIndexRepo(conn)

	return New(cfg, adapter, vehicles, index, nil, nil, nil), vehicles
}

func TestRunCycle_UpsertsAndPreservesFirstSeen(t *testing.T) {
	adapter := &fakeAdapter{
		models: []parser.ModelEntry{{Name: "Ceed", Count: 2}},
		vehicles: map[string][]dtos.RawRecord{
			"Ceed": {record("100", "Ceed", "12.999"), record("101", "Ceed", "14.500")},
		},
	}
	p, vehicles := testPipeline(t, adapter)
	ctx := context.Background()

	first, err := p.RunCycle(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Total)
	assert.Equal(t, 2, first.New)
	assert.Equal(t, 0, first.Deactivated)
	assert.Equal(t, map[string]int{"Ceed": 2}, first.ModelCounts)

	before, err := vehicles.FindByID(ctx, "kia_ceed_100")
	require.NoError(t, err)
	require.NotNil(t, before)
	assert.True(t, before.IsActive)
	assert.InDelta(t, 12999.0, before.Price, 0.001)

	time.Sleep(5 * time.Millisecond)

	second, err := p.RunCycle(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Total)
	assert.Equal(t, 0, second.New, "re-ingested vehicles must not count as new")

	after, err := vehicles.FindByID(ctx, "kia_ceed_100")
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.Equal(t, before.FirstSeen.Unix(), after.FirstSeen.Unix(), "first_seen must survive upserts")
	assert.False(t, after.LastUpdated.Before(before.LastUpdated))
}

func TestRunCycle_ReconciliationDeactivatesMissing(t *testing.T) {
	adapter := &fakeAdapter{
		models: []parser.ModelEntry{{Name: "Niro", Count: 3}},
		vehicles: map[string][]dtos.RawRecord{
			"Niro": {record("a", "Niro", "20.000"), record("b", "Niro", "21.000"), record("c", "Niro", "22.000")},
		},
	}
	p, vehicles := testPipeline(t, adapter)
	ctx := context.Background()

	_, err := p.RunCycle(ctx, nil)
	require.NoError(t, err)

	// c disappears upstream.
	adapter.vehicles["Niro"] = adapter.vehicles["Niro"][:2]

	second, err := p.RunCycle(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Deactivated)

	gone, err := vehicles.FindByID(ctx, "kia_niro_c")
	require.NoError(t, err)
	require.NotNil(t, gone)
	assert.False(t, gone.IsActive)
	require.NotNil(t, gone.InactiveSince)
	firstTransition := *gone.InactiveSince

	kept, err := vehicles.FindByID(ctx, "kia_niro_a")
	require.NoError(t, err)
	assert.True(t, kept.IsActive, "observed vehicles must stay active")

	// Another cycle without c: already inactive, transition timestamp stays.
	third, err := p.RunCycle(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, third.Deactivated)

	gone, err = vehicles.FindByID(ctx, "kia_niro_c")
	require.NoError(t, err)
	assert.Equal(t, firstTransition.Unix(), gone.InactiveSince.Unix())
}

func TestRunCycle_ReconciliationSurvivesDivergentModelLabel(t *testing.T) {
	// The detail endpoint reports a trim-level model name ("Ceed GT") for a
	// vehicle listed under the plain "Ceed" entry, so the stored vehicle_id
	// does not contain the entry name. Deactivation must still find the row
	// once the vehicle disappears upstream.
	adapter := &fakeAdapter{
		models: []parser.ModelEntry{{Name: "Ceed", Count: 1}},
		vehicles: map[string][]dtos.RawRecord{
			"Ceed": {record("x1", "Ceed", "19.000")},
		},
		details: map[string]dtos.RawRecord{
			"x1": {"idcoche": "x1", "modelo": "Ceed GT", "precio": "19.000"},
		},
	}
	p, vehicles := testPipeline(t, adapter)
	ctx := context.Background()

	_, err := p.RunCycle(ctx, nil)
	require.NoError(t, err)

	stored, err := vehicles.FindByID(ctx, "kia_ceed_gt_x1")
	require.NoError(t, err)
	require.NotNil(t, stored, "enriched record keys on its own model label")
	assert.True(t, stored.IsActive)

	// The vehicle disappears upstream.
	adapter.vehicles["Ceed"] = nil

	second, err := p.RunCycle(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Deactivated)

	stored, err = vehicles.FindByID(ctx, "kia_ceed_gt_x1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.False(t, stored.IsActive, "vehicle gone upstream must be deactivated")
	assert.NotNil(t, stored.InactiveSince)
}

func TestRunCycle_ConcurrentCyclesSerialize(t *testing.T) {
	// A scheduled cycle and a triggered cycle can arrive at the same time.
	// Cycles must serialize, so exactly one of them sees the vehicle as new.
	adapter := &fakeAdapter{
		models: []parser.ModelEntry{{Name: "Ceed", Count: 1}},
		vehicles: map[string][]dtos.RawRecord{
			"Ceed": {record("solo", "Ceed", "17.500")},
		},
	}
	p, _ := testPipeline(t, adapter)
	ctx := context.Background()

	results := make(chan *CycleResult, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := p.RunCycle(ctx, nil)
			assert.NoError(t, err)
			results <- result
		}()
	}
	wg.Wait()
	close(results)

	totalNew := 0
	for result := range results {
		totalNew += result.New
	}
	assert.Equal(t, 1, totalNew, "only the first cycle may report the vehicle as new")
}

func TestRunCycle_SkipsReconciliationForFailedModel(t *testing.T) {
	adapter := &fakeAdapter{
		models: []parser.ModelEntry{{Name: "Sportage", Count: 1}},
		vehicles: map[string][]dtos.RawRecord{
			"Sportage": {record("x1", "Sportage", "28.000")},
		},
		failModels: map[string]bool{},
	}
	p, vehicles := testPipeline(t, adapter)
	ctx := context.Background()

	_, err := p.RunCycle(ctx, nil)
	require.NoError(t, err)

	adapter.failModels["Sportage"] = true

	result, err := p.RunCycle(ctx, nil)
	require.NoError(t, err, "a single model failure must not fail the cycle")
	assert.Equal(t, []string{"Sportage"}, result.FailedModels)
	assert.Equal(t, 0, result.Deactivated)

	v, err := vehicles.FindByID(ctx, "kia_sportage_x1")
	require.NoError(t, err)
	assert.True(t, v.IsActive, "failed fetch must not deactivate known vehicles")
}

func TestRunCycle_ModelIndexFailureIsTerminal(t *testing.T) {
	adapter := &fakeAdapter{failIndex: true}
	p, _ := testPipeline(t, adapter)

	result, err := p.RunCycle(context.Background(), nil)
	require.Error(t, err)
	assert.Nil(t, result)
}

func TestRunCycle_DetailEnrichment(t *testing.T) {
	adapter := &fakeAdapter{
		models: []parser.ModelEntry{{Name: "Picanto", Count: 1}},
		vehicles: map[string][]dtos.RawRecord{
			"Picanto": {record("77", "Picanto", "9.990")},
		},
		details: map[string]dtos.RawRecord{
			"77": {
				"idcoche": "77", "modelo": "Picanto", "precio": "9.990",
				"kilometros": "14.500 km", "combustible": "Gasolina",
			},
		},
	}
	p, vehicles := testPipeline(t, adapter)

	_, err := p.RunCycle(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, adapter.detailCalls)

	v, err := vehicles.FindByID(context.Background(), "kia_picanto_77")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 14500, v.Mileage)
	assert.Equal(t, "Gasolina", v.FuelType)
}

func TestRunCycle_PlaceholdersSkipDetailFetch(t *testing.T) {
	adapter := &fakeAdapter{
		models: []parser.ModelEntry{{Name: "Stonic", Count: 2}},
		vehicles: map[string][]dtos.RawRecord{
			"Stonic": {
				{"idcoche": "stonic-0", "modelo": "Stonic", "precio": float64(15990), "placeholder": true},
				{"idcoche": "stonic-1", "modelo": "Stonic", "precio": float64(15990), "placeholder": true},
			},
		},
	}
	p, _ := testPipeline(t, adapter)

	result, err := p.RunCycle(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 0, adapter.detailCalls, "placeholders carry no real identifier to look up")
}

func TestRunCycle_ModelFilter(t *testing.T) {
	adapter := &fakeAdapter{
		models: []parser.ModelEntry{{Name: "Ceed"}, {Name: "Niro"}},
		vehicles: map[string][]dtos.RawRecord{
			"Ceed": {record("1", "Ceed", "12.000")},
			"Niro": {record("2", "Niro", "24.000")},
		},
	}
	p, _ := testPipeline(t, adapter)

	result, err := p.RunCycle(context.Background(), &dtos.IngestFilters{Models: []string{"niro"}})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
	assert.Contains(t, result.ModelCounts, "Niro")
	assert.NotContains(t, result.ModelCounts, "Ceed")
	assert.Equal(t, 1, adapter.listingCalls)
}

func TestRunCycle_PriceFilterSkipsWriteButKeepsObservation(t *testing.T) {
	adapter := &fakeAdapter{
		models: []parser.ModelEntry{{Name: "Ceed", Count: 2}},
		vehicles: map[string][]dtos.RawRecord{
			"Ceed": {record("cheap", "Ceed", "9.000"), record("dear", "Ceed", "30.000")},
		},
	}
	p, vehicles := testPipeline(t, adapter)
	ctx := context.Background()

	max := 20000.0
	result, err := p.RunCycle(ctx, &dtos.IngestFilters{MaxPrice: &max})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total, "filtered vehicles still count as observed")

	cheap, err := vehicles.FindByID(ctx, "kia_ceed_cheap")
	require.NoError(t, err)
	assert.NotNil(t, cheap)

	dear, err := vehicles.FindByID(ctx, "kia_ceed_dear")
	require.NoError(t, err)
	assert.Nil(t, dear, "vehicles outside the price filter are not written")
}

func TestRunCycle_StaticAdapter(t *testing.T) {
	p, vehicles := testPipeline(t, providers.NewStaticAdapter(nil))
	ctx := context.Background()

	result, err := p.RunCycle(ctx, &dtos.IngestFilters{Models: []string{"Picanto"}})
	require.NoError(t, err)
	require.Greater(t, result.Total, 0)
	assert.Equal(t, result.Total, result.New)

	listed, err := vehicles.Search(ctx, dtos.VehicleQuery{Model: "picanto"})
	require.NoError(t, err)
	assert.Len(t, listed, result.Total)
}
