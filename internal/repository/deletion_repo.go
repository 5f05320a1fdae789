package repository

import (
	"context"

	"boxtrack/internal/model"

	"gorm.io/gorm"
)

// DeletionRepository writes and reads the removal audit trail.
type DeletionRepository interface {
	Record(ctx context.Context, d *model.DeletedProduct) error
	ListByStore(ctx context.Context, storeID string, limit int) ([]model.DeletedProduct, error)
}

type deletionRepo struct{ db *gorm.DB }

func NewDeletionRepository(db *gorm.DB) DeletionRepository { return &deletionRepo{db: db} }

func (r *deletionRepo) Record(ctx context.Context, d *model.DeletedProduct) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *deletionRepo) ListByStore(ctx context.Context, storeID string, limit int) ([]model.DeletedProduct, error) {
	var list []model.DeletedProduct
	err := r.db.WithContext(ctx).
		Where("store_id = ?", storeID).
		Order("deleted_at DESC").
		Limit(limit).
		Find(&list).Error
	return list, err
}
