package entities

import "time"

// Vehicle is the canonical listing entity. One row per vehicle observed on
// the outlet site, keyed by a deterministic vehicle_id derived from
// (brand, model, source_id). Rows are never deleted: a vehicle that
// disappears upstream is marked inactive instead.
type Vehicle struct {
	VehicleID string `gorm:"column:vehicle_id;primaryKey;type:varchar(128)" json:"vehicle_id"`
	SourceID  string `gorm:"column:source_id;type:varchar(64);not null;index" json:"source_id"`

	Brand   string `gorm:"column:brand;type:varchar(64);index" json:"brand"`
	Model   string `gorm:"column:model;type:varchar(64);index" json:"model"`
	Version string `gorm:"column:version;type:varchar(128)" json:"version,omitempty"`
	Title   string `gorm:"column:title;type:varchar(256)" json:"title,omitempty"`
	Year    *int   `gorm:"column:year" json:"year,omitempty"`

	Price     float64 `gorm:"column:price;index" json:"price"`
	PriceCash float64 `gorm:"column:price_cash" json:"price_cash"`

	Mileage int `gorm:"column:mileage" json:"mileage"`
	Power   int `gorm:"column:power" json:"power"`

	FuelType      string `gorm:"column:fuel_type;type:varchar(64)" json:"fuel_type"`
	Transmission  string `gorm:"column:transmission;type:varchar(64)" json:"transmission"`
	ColorExterior string `gorm:"column:color_exterior;type:varchar(64)" json:"color_exterior"`
	ColorInterior string `gorm:"column:color_interior;type:varchar(64)" json:"color_interior"`
	BodyType      string `gorm:"column:body_type;type:varchar(64)" json:"body_type"`

	Images   StringList `gorm:"column:images;type:text" json:"images"`
	Features StringList `gorm:"column:features;type:text" json:"features"`

	Dealer         string `gorm:"column:dealer;type:varchar(128)" json:"dealer,omitempty"`
	DealerLocation string `gorm:"column:dealer_location;type:varchar(128)" json:"dealer_location,omitempty"`
	DealerEmail    string `gorm:"column:dealer_email;type:varchar(128)" json:"dealer_email,omitempty"`
	DealerPhone    string `gorm:"column:dealer_phone;type:varchar(64)" json:"dealer_phone,omitempty"`
	DealerAddress  string `gorm:"column:dealer_address;type:varchar(256)" json:"dealer_address,omitempty"`

	MatriculationDate string `gorm:"column:matriculation_date;type:varchar(32)" json:"matriculation_date,omitempty"`
	LicensePlate      string `gorm:"column:license_plate;type:varchar(16)" json:"license_plate,omitempty"`
	Warranty          string `gorm:"column:warranty;type:varchar(64)" json:"warranty,omitempty"`
	EngineSize        string `gorm:"column:engine_size;type:varchar(16)" json:"engine_size,omitempty"`
	EmissionLabel     string `gorm:"column:emission_label;type:varchar(16)" json:"emission_label,omitempty"`

	URL string `gorm:"column:url;type:varchar(512)" json:"url"`

	IsActive      bool       `gorm:"column:is_active;index" json:"is_active"`
	FirstSeen     time.Time  `gorm:"column:first_seen;not null" json:"first_seen"`
	LastUpdated   time.Time  `gorm:"column:last_updated;not null" json:"last_updated"`
	InactiveSince *time.Time `gorm:"column:inactive_since" json:"inactive_since,omitempty"`
}

// TableName specifies the table name for GORM
func (Vehicle) TableName() string {
	return "vehicles"
}
