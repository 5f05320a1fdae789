package repository

import (
	"context"
	"time"

	"boxtrack/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductRepository is the remote document store for products. Every write
// is version-guarded: it only lands when the stored version is lower than
// the one supplied, so replays and out-of-order writes are harmless.
type ProductRepository interface {
	ListByStore(ctx context.Context, storeID string) ([]model.Product, error)
	ListByCategory(ctx context.Context, storeID string, cat model.Categoria) ([]model.Product, error)
	// FindBySKU matches the SKU case-insensitively. Returns gorm.ErrRecordNotFound on miss.
	FindBySKU(ctx context.Context, storeID string, cat model.Categoria, sku string) (*model.Product, error)
	// Upsert reports false when the stored version is the same or newer.
	// SKUs collide case-insensitively; an existing row keeps its casing.
	Upsert(ctx context.Context, p *model.Product) (bool, error)
	UpdateFields(ctx context.Context, key model.ProductKey, patch model.ProductPatch, version int64, at time.Time) (bool, error)
	Delete(ctx context.Context, key model.ProductKey, version int64) (bool, error)
}

type productRepo struct{ db *gorm.DB }

func NewProductRepository(db *gorm.DB) ProductRepository { return &productRepo{db: db} }

func (r *productRepo) ListByStore(ctx context.Context, storeID string) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Where("store_id = ?", storeID).
		Order("categoria ASC, sku ASC").
		Find(&products).Error
	return products, err
}

func (r *productRepo) ListByCategory(ctx context.Context, storeID string, cat model.Categoria) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND categoria = ?", storeID, cat).
		Order("sku ASC").
		Find(&products).Error
	return products, err
}

func (r *productRepo) FindBySKU(ctx context.Context, storeID string, cat model.Categoria, sku string) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND categoria = ? AND lower(sku) = lower(?)", storeID, cat, sku).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

var upsertColumns = []string{
	"caixa", "gender", "imagem", "link", "on_sale", "sale_price",
	"sale_updated_at", "version", "last_modified",
}

// Upsert's conflict arbiter is the unique (store_id, categoria, lower(sku))
// index created by infra.RunMigrations; sku is never overwritten.
func (r *productRepo) Upsert(ctx context.Context, p *model.Product) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "store_id"}, {Name: "categoria"}, {Name: "(lower(sku))", Raw: true}},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "products.version < excluded.version"},
		}},
	}).Create(p)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *productRepo) UpdateFields(ctx context.Context, key model.ProductKey, patch model.ProductPatch, version int64, at time.Time) (bool, error) {
	cols := patch.Columns()
	cols["version"] = version
	cols["last_modified"] = at
	res := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("store_id = ? AND categoria = ? AND lower(sku) = lower(?) AND version < ?", key.StoreID, key.Categoria, key.SKU, version).
		Updates(cols)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *productRepo) Delete(ctx context.Context, key model.ProductKey, version int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("store_id = ? AND categoria = ? AND lower(sku) = lower(?) AND version < ?", key.StoreID, key.Categoria, key.SKU, version).
		Delete(&model.Product{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
