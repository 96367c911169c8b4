package repositories

import (
	"context"
	"strings"
	"time"

	gormlib "gorm.io/gorm"
	"gorm.io/gorm/clause"

	"okasion-watch/collector/internal/models/dtos"
	"okasion-watch/collector/internal/models/entities"
)

// VehicleRepo handles vehicles table operations
type VehicleRepo struct {
	db *gormlib.DB
}

// NewVehicleRepo creates a new vehicle repository
func NewVehicleRepo(db *gormlib.DB) *VehicleRepo {
	return &VehicleRepo{db: db}
}

// vehicleUpdateColumns lists every column refreshed on upsert. first_seen is
// deliberately absent: it is set once on insert and never mutated.
var vehicleUpdateColumns = []string{
	"source_id", "brand", "model", "version", "title", "year",
	"price", "price_cash", "mileage", "power",
	"fuel_type", "transmission", "color_exterior", "color_interior", "body_type",
	"images", "features",
	"dealer", "dealer_location", "dealer_email", "dealer_phone", "dealer_address",
	"matriculation_date", "license_plate", "warranty", "engine_size", "emission_label",
	"url", "is_active", "last_updated", "inactive_since",
}

// Upsert inserts or updates a vehicle by vehicle_id.
// ON CONFLICT (vehicle_id) DO UPDATE, everything except first_seen.
// An upsert is itself evidence the listing still exists, so is_active is
// forced true and inactive_since cleared. Returns whether the row was new.
//
// The new/updated distinction comes from a count taken before the write, not
// from the write itself: ON CONFLICT reports one affected row either way, so
// the database cannot tell us. This assumes a single writer per vehicle_id;
// the pipeline serializes its cycles to guarantee it. Two writers racing on
// the same key could both report the row as new.
func (r *VehicleRepo) Upsert(ctx context.Context, v *entities.Vehicle) (bool, error) {
	now := time.Now().UTC()

	if v.FirstSeen.IsZero() {
		v.FirstSeen = now
	}
	v.LastUpdated = now
	v.IsActive = true
	v.InactiveSince = nil

	var existing int64
	if err := r.db.WithContext(ctx).
		Model(&entities.Vehicle{}).
		Where("vehicle_id = ?", v.VehicleID).
		Count(&existing).Error; err != nil {
		return false, err
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "vehicle_id"}},
			DoUpdates: clause.AssignmentColumns(vehicleUpdateColumns),
		}).
		Create(v).Error
	if err != nil {
		return false, err
	}

	return existing == 0, nil
}

// Deactivate marks a vehicle inactive and stamps inactive_since. Idempotent:
// a vehicle that is already inactive is left untouched, preserving the
// original transition timestamp. Returns whether a row was transitioned.
func (r *VehicleRepo) Deactivate(ctx context.Context, vehicleID string) (bool, error) {
	now := time.Now().UTC()

	res := r.db.WithContext(ctx).
		Model(&entities.Vehicle{}).
		Where("vehicle_id = ? AND is_active = ?", vehicleID, true).
		Updates(map[string]interface{}{
			"is_active":      false,
			"inactive_since": now,
			"last_updated":   now,
		})

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeactivateBySource marks every active vehicle carrying the upstream
// source_id inactive. Reconciliation uses this instead of rebuilding the
// vehicle_id: a detail record's own model label may diverge from the index
// entry it was listed under ("Ceed GT" inside the "Ceed" listing), so the
// upstream identifier is the only key both sides agree on. Returns how many
// rows were transitioned.
func (r *VehicleRepo) DeactivateBySource(ctx context.Context, sourceID string) (int64, error) {
	now := time.Now().UTC()

	res := r.db.WithContext(ctx).
		Model(&entities.Vehicle{}).
		Where("source_id = ? AND is_active = ?", sourceID, true).
		Updates(map[string]interface{}{
			"is_active":      false,
			"inactive_since": now,
			"last_updated":   now,
		})

	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// FindByID returns a vehicle by vehicle_id, or nil if absent.
func (r *VehicleRepo) FindByID(ctx context.Context, vehicleID string) (*entities.Vehicle, error) {
	var v entities.Vehicle

	err := r.db.WithContext(ctx).
		Where("vehicle_id = ?", vehicleID).
		First(&v).Error

	if err != nil {
		if err == gormlib.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}

	return &v, nil
}

// QueryByPriceRange returns active vehicles with min <= price <= max,
// ascending by price, bounded by limit. Inactive vehicles are included only
// when includeInactive is set.
func (r *VehicleRepo) QueryByPriceRange(ctx context.Context, min, max float64, limit int, includeInactive bool) ([]entities.Vehicle, error) {
	if limit <= 0 {
		limit = 100
	}

	q := r.db.WithContext(ctx).
		Where("price >= ? AND price <= ?", min, max)
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}

	var vehicles []entities.Vehicle
	err := q.Order("price ASC").Limit(limit).Find(&vehicles).Error
	return vehicles, err
}

// Search applies the read API's filters: inclusive price bounds, exact brand
// match, case-insensitive model substring match.
func (r *VehicleRepo) Search(ctx context.Context, query dtos.VehicleQuery) ([]entities.Vehicle, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = 100
	}

	q := r.db.WithContext(ctx).Model(&entities.Vehicle{})

	if query.MinPrice != nil {
		q = q.Where("price >= ?", *query.MinPrice)
	}
	if query.MaxPrice != nil {
		q = q.Where("price <= ?", *query.MaxPrice)
	}
	if query.Brand != "" {
		q = q.Where("brand = ?", query.Brand)
	}
	if query.Model != "" {
		q = q.Where("LOWER(model) LIKE ?", "%"+strings.ToLower(query.Model)+"%")
	}
	if !query.IncludeInactive {
		q = q.Where("is_active = ?", true)
	}

	var vehicles []entities.Vehicle
	err := q.Order("price ASC").Limit(limit).Find(&vehicles).Error
	return vehicles, err
}

// ActiveSourceIDsByModel returns the source IDs of all active vehicles of a
// model, used as a fallback when no model index row exists yet.
func (r *VehicleRepo) ActiveSourceIDsByModel(ctx context.Context, model string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&entities.Vehicle{}).
		Where("model = ? AND is_active = ?", model, true).
		Pluck("source_id", &ids).Error
	return ids, err
}
