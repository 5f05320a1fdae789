package repository

import (
	"context"

	"boxtrack/internal/model"

	"gorm.io/gorm"
)

// ImageRepository stores permanent image metadata (permanent_images).
type ImageRepository interface {
	Find(ctx context.Context, cat model.Categoria, sku string) (*model.PermanentImage, error)
	Save(ctx context.Context, img *model.PermanentImage) error
}

type imageRepo struct{ db *gorm.DB }

func NewImageRepository(db *gorm.DB) ImageRepository { return &imageRepo{db: db} }

func (r *imageRepo) Find(ctx context.Context, cat model.Categoria, sku string) (*model.PermanentImage, error) {
	var img model.PermanentImage
	err := r.db.WithContext(ctx).Where("categoria = ? AND sku = ?", cat, sku).First(&img).Error
	if err != nil {
		return nil, err
	}
	return &img, nil
}

// Save inserts the image, or updates the stored path when it already exists.
func (r *imageRepo) Save(ctx context.Context, img *model.PermanentImage) error {
	err := r.db.WithContext(ctx).Create(img).Error
	if err == nil || !isUniqueViolation(err) {
		return err
	}
	return r.db.WithContext(ctx).Model(&model.PermanentImage{}).
		Where("categoria = ? AND sku = ?", img.Categoria, img.SKU).
		Update("path", img.Path).Error
}
