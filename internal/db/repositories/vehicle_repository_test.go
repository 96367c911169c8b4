package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	gormlib "gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"okasion-watch/collector/internal/db"
	"okasion-watch/collector/internal/models/dtos"
	"okasion-watch/collector/internal/models/entities"
)

func testDB(t *testing.T) *gormlib.DB {
	t.Helper()

	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	conn, err := gormlib.Open(sqlite.Open(dsn), &gormlib.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	return conn
}

func vehicle(id, model string, price float64) *entities.Vehicle {
	return &entities.Vehicle{
		VehicleID: "kia_" + model + "_" + id,
		SourceID:  id,
		Brand:     "KIA",
		Model:     model,
		Price:     price,
	}
}

func TestVehicleRepo_UpsertPreservesFirstSeen(t *testing.T) {
	repo := NewVehicleRepo(testDB(t))
	ctx := context.Background()

	isNew, err := repo.Upsert(ctx, vehicle("1", "ceed", 12999))
	require.NoError(t, err)
	assert.True(t, isNew)

	stored, err := repo.FindByID(ctx, "kia_ceed_1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	firstSeen := stored.FirstSeen
	assert.False(t, firstSeen.IsZero())
	assert.True(t, stored.IsActive)

	time.Sleep(5 * time.Millisecond)

	updated := vehicle("1", "ceed", 11500)
	isNew, err = repo.Upsert(ctx, updated)
	require.NoError(t, err)
	assert.False(t, isNew)

	stored, err = repo.FindByID(ctx, "kia_ceed_1")
	require.NoError(t, err)
	assert.InDelta(t, 11500.0, stored.Price, 0.001)
	assert.Equal(t, firstSeen.Unix(), stored.FirstSeen.Unix())
	assert.False(t, stored.LastUpdated.Before(firstSeen))
}

func TestVehicleRepo_UpsertReactivates(t *testing.T) {
	repo := NewVehicleRepo(testDB(t))
	ctx := context.Background()

	_, err := repo.Upsert(ctx, vehicle("7", "niro", 24000))
	require.NoError(t, err)

	changed, err := repo.Deactivate(ctx, "kia_niro_7")
	require.NoError(t, err)
	assert.True(t, changed)

	// The listing comes back: upsert reactivates and clears inactive_since.
	_, err = repo.Upsert(ctx, vehicle("7", "niro", 23500))
	require.NoError(t, err)

	stored, err := repo.FindByID(ctx, "kia_niro_7")
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
	assert.Nil(t, stored.InactiveSince)
}

func TestVehicleRepo_DeactivateIsIdempotent(t *testing.T) {
	repo := NewVehicleRepo(testDB(t))
	ctx := context.Background()

	_, err := repo.Upsert(ctx, vehicle("9", "rio", 15000))
	require.NoError(t, err)

	changed, err := repo.Deactivate(ctx, "kia_rio_9")
	require.NoError(t, err)
	assert.True(t, changed)

	stored, err := repo.FindByID(ctx, "kia_rio_9")
	require.NoError(t, err)
	require.NotNil(t, stored.InactiveSince)
	firstTransition := *stored.InactiveSince

	time.Sleep(5 * time.Millisecond)

	changed, err = repo.Deactivate(ctx, "kia_rio_9")
	require.NoError(t, err)
	assert.False(t, changed, "second deactivation must be a no-op")

	stored, err = repo.FindByID(ctx, "kia_rio_9")
	require.NoError(t, err)
	assert.Equal(t, firstTransition.Unix(), stored.InactiveSince.Unix())
}

func TestVehicleRepo_DeactivateBySource(t *testing.T) {
	repo := NewVehicleRepo(testDB(t))
	ctx := context.Background()

	// The stored model label carries a trim level, so vehicle_id cannot be
	// rebuilt from the listing name alone; source_id still finds the row.
	_, err := repo.Upsert(ctx, &entities.Vehicle{
		VehicleID: "kia_ceed_gt_x1",
		SourceID:  "x1",
		Brand:     "KIA",
		Model:     "Ceed GT",
		Price:     19000,
	})
	require.NoError(t, err)

	changed, err := repo.DeactivateBySource(ctx, "x1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	stored, err := repo.FindByID(ctx, "kia_ceed_gt_x1")
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.NotNil(t, stored.InactiveSince)

	changed, err = repo.DeactivateBySource(ctx, "x1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), changed, "already inactive rows are left alone")

	changed, err = repo.DeactivateBySource(ctx, "never-seen")
	require.NoError(t, err)
	assert.Equal(t, int64(0), changed)
}

func TestVehicleRepo_DeactivateUnknownVehicle(t *testing.T) {
	repo := NewVehicleRepo(testDB(t))

	changed, err := repo.Deactivate(context.Background(), "kia_ceed_missing")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestVehicleRepo_QueryByPriceRange(t *testing.T) {
	repo := NewVehicleRepo(testDB(t))
	ctx := context.Background()

	for _, v := range []*entities.Vehicle{
		vehicle("a", "picanto", 9990),
		vehicle("b", "ceed", 10000),
		vehicle("c", "niro", 15000),
		vehicle("d", "sportage", 15001),
	} {
		_, err := repo.Upsert(ctx, v)
		require.NoError(t, err)
	}
	_, err := repo.Deactivate(ctx, "kia_niro_c")
	require.NoError(t, err)

	// Bounds are inclusive; inactive rows are excluded by default.
	got, err := repo.QueryByPriceRange(ctx, 10000, 15000, 0, false)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "kia_ceed_b", got[0].VehicleID)

	got, err = repo.QueryByPriceRange(ctx, 10000, 15000, 0, true)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "kia_ceed_b", got[0].VehicleID, "ascending price order")
	assert.Equal(t, "kia_niro_c", got[1].VehicleID)

	got, err = repo.QueryByPriceRange(ctx, 9000, 20000, 2, true)
	require.NoError(t, err)
	assert.Len(t, got, 2, "limit caps the result")
}

func TestVehicleRepo_Search(t *testing.T) {
	repo := NewVehicleRepo(testDB(t))
	ctx := context.Background()

	for _, v := range []*entities.Vehicle{
		vehicle("1", "Ceed", 12000),
		vehicle("2", "Ceed Sportswagon", 14000),
		vehicle("3", "Niro", 24000),
	} {
		_, err := repo.Upsert(ctx, v)
		require.NoError(t, err)
	}

	got, err := repo.Search(ctx, dtos.VehicleQuery{Model: "ceed"})
	require.NoError(t, err)
	assert.Len(t, got, 2, "model match is a case-insensitive substring")

	min := 13000.0
	got, err = repo.Search(ctx, dtos.VehicleQuery{Model: "ceed", MinPrice: &min})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Ceed Sportswagon", got[0].Model)

	got, err = repo.Search(ctx, dtos.VehicleQuery{Brand: "KIA"})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestModelIndexRepo_ReplaceAndRead(t *testing.T) {
	repo := NewModelIndexRepo(testDB(t))
	ctx := context.Background()

	ids, err := repo.Read(ctx, "Ceed")
	require.NoError(t, err)
	assert.Empty(t, ids, "missing index row reads as empty")

	require.NoError(t, repo.Replace(ctx, "Ceed", []string{"1", "2", "3"}))

	ids, err = repo.Read(ctx, "Ceed")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2", "3"}, ids)

	require.NoError(t, repo.Replace(ctx, "Ceed", []string{"2", "4"}))

	ids, err = repo.Read(ctx, "Ceed")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"2", "4"}, ids, "replace swaps the whole set")
}
