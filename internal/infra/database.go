package infra

import (
	"fmt"

	"boxtrack/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens the remote document store (PostgreSQL through pgx).
// Callers run RunMigrations before first use.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	return db, nil
}

// RunMigrations creates or updates every document table. Safe to re-run.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Product{},
		&model.PermanentImage{},
		&model.DeletedProduct{},
		&model.StoreSecret{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches adds the expression indexes behind case-insensitive
// SKUs. The unique one is also the upsert conflict target, so "abc1" and
// "ABC1" can never be two documents. Each statement is idempotent.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		{"drop non-unique lower(sku) index",
			`DROP INDEX IF EXISTS idx_products_store_cat_lower_sku`},
		{"products unique lower(sku)",
			`CREATE UNIQUE INDEX IF NOT EXISTS uq_products_store_cat_lower_sku
			   ON products (store_id, categoria, lower(sku))`},
		{"cross-store lower(sku) lookup",
			`CREATE INDEX IF NOT EXISTS idx_products_lower_sku ON products (lower(sku))`},
		{"deleted_products by store and time",
			`CREATE INDEX IF NOT EXISTS idx_deleted_products_store_time
			   ON deleted_products (store_id, deleted_at DESC)`},
	}
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
