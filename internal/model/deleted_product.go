package model

import (
	"time"

	"github.com/google/uuid"
)

// DeletedProduct is the audit trail written when a product is removed.
// Snapshot holds the JSON of the product as it was last cached.
type DeletedProduct struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	StoreID   string    `gorm:"size:64;index;not null"`
	Categoria Categoria `gorm:"size:16;not null"`
	SKU       string    `gorm:"size:64;index;not null"`
	Caixa     string
	Snapshot  []byte `gorm:"type:jsonb"`
	DeletedAt time.Time
}

func (DeletedProduct) TableName() string { return "deleted_products" }
