package repository

import (
	"context"

	"storefront/internal/domain/model"

	"gorm.io/gorm"
)

type IdempotencyGormRepository struct {
	db *gorm.DB
}

func NewIdempotencyGormRepository(db *gorm.DB) *IdempotencyGormRepository {
	return &IdempotencyGormRepository{db: db}
}

func (r *IdempotencyGormRepository) Find(ctx context.Context, scope, key string) (model.IdempotencyRecord, error) {
	var rec model.IdempotencyRecord
	err := r.db.WithContext(ctx).
		Where("scope = ? AND key = ?", scope, key).
		First(&rec).Error
	if err != nil {
		return model.IdempotencyRecord{}, classify(err)
	}
	return rec, nil
}

// ユニーク制約に当たれば ErrDuplicate（classify経由）
func (r *IdempotencyGormRepository) Create(ctx context.Context, rec model.IdempotencyRecord) error {
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return classify(err)
	}
	return nil
}
