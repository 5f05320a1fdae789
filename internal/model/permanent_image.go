package model

import "time"

// PermanentImage remembers a resolved image path so later lookups skip the
// probe.
type PermanentImage struct {
	Categoria Categoria `gorm:"primaryKey;size:16"`
	SKU       string    `gorm:"primaryKey;size:64"`
	Path      string    `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (PermanentImage) TableName() string { return "permanent_images" }
