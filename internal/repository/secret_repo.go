package repository

import (
	"context"

	"boxtrack/internal/model"

	"gorm.io/gorm"
)

// SecretRepository holds per-store admin credentials.
type SecretRepository interface {
	Find(ctx context.Context, storeID string) (*model.StoreSecret, error)
	Save(ctx context.Context, s *model.StoreSecret) error
}

type secretRepo struct{ db *gorm.DB }

func NewSecretRepository(db *gorm.DB) SecretRepository { return &secretRepo{db: db} }

func (r *secretRepo) Find(ctx context.Context, storeID string) (*model.StoreSecret, error) {
	var s model.StoreSecret
	if err := r.db.WithContext(ctx).First(&s, "store_id = ?", storeID).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *secretRepo) Save(ctx context.Context, s *model.StoreSecret) error {
	return r.db.WithContext(ctx).Save(s).Error
}
