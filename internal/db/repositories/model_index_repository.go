package repositories

import (
	"context"
	"time"

	gormlib "gorm.io/gorm"
	"gorm.io/gorm/clause"

	"okasion-watch/collector/internal/models/entities"
)

// ModelIndexRepo handles model_index table operations
type ModelIndexRepo struct {
	db *gormlib.DB
}

// NewModelIndexRepo creates a new model index repository
func NewModelIndexRepo(db *gormlib.DB) *ModelIndexRepo {
	return &ModelIndexRepo{db: db}
}

// Read returns the source IDs observed for a model on the last completed
// cycle. A model that has never been ingested yields an empty set.
func (r *ModelIndexRepo) Read(ctx context.Context, modelName string) ([]string, error) {
	var idx entities.ModelIndex

	err := r.db.WithContext(ctx).
		Where("model_name = ?", modelName).
		First(&idx).Error

	if err != nil {
		if err == gormlib.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}

	return idx.KnownSourceIDs, nil
}

// Replace overwrites the known set for a model with the IDs observed this
// cycle. ON CONFLICT (model_name) DO UPDATE.
func (r *ModelIndexRepo) Replace(ctx context.Context, modelName string, sourceIDs []string) error {
	idx := &entities.ModelIndex{
		ModelName:      modelName,
		KnownSourceIDs: sourceIDs,
		LastUpdated:    time.Now().UTC(),
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "model_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"known_source_ids", "last_updated"}),
		}).
		Create(idx).Error
}
