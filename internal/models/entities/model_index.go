package entities

import "time"

// ModelIndex tracks, per model, the set of source IDs observed on the most
// recent complete ingestion cycle. It is read at the start of a cycle to
// compute the deactivation diff and rewritten with the newly observed set
// once all of the model's vehicles are persisted.
type ModelIndex struct {
	ModelName      string     `gorm:"column:model_name;primaryKey;type:varchar(64)" json:"model_name"`
	KnownSourceIDs StringList `gorm:"column:known_source_ids;type:text" json:"known_source_ids"`
	LastUpdated    time.Time  `gorm:"column:last_updated;not null" json:"last_updated"`
}

// TableName specifies the table name for GORM
func (ModelIndex) TableName() string {
	return "model_index"
}
