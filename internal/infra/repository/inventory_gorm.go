package repository

import (
	"context"
	"fmt"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InventoryGormRepository struct {
	db *gorm.DB
}

func NewInventoryGormRepository(db *gorm.DB) *InventoryGormRepository {
	return &InventoryGormRepository{db: db}
}

func (r *InventoryGormRepository) FindByProductID(ctx context.Context, productID int64) (model.InventoryRecord, error) {
	var rec model.InventoryRecord
	if err := r.db.WithContext(ctx).Where("product_id = ?", productID).First(&rec).Error; err != nil {
		return model.InventoryRecord{}, classify(err)
	}
	return rec, nil
}

func (r *InventoryGormRepository) LockByProductID(ctx context.Context, productID int64) (model.InventoryRecord, error) {
	var rec model.InventoryRecord
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ?", productID).
		First(&rec).Error
	if err != nil {
		return model.InventoryRecord{}, classify(err)
	}
	return rec, nil
}

// 数量の更新とログ追加。同じTxで呼ぶこと
func (r *InventoryGormRepository) ApplyDelta(ctx context.Context, entry model.InventoryLogEntry) (model.InventoryLogEntry, error) {
	//読んだ時点の数量から変わっていたら更新しない
	res := r.db.WithContext(ctx).
		Model(&model.InventoryRecord{}).
		Where("product_id = ? AND quantity = ?", entry.ProductID, entry.PreviousQuantity).
		Updates(map[string]any{
			"quantity":   entry.NewQuantity,
			"updated_at": entry.CreatedAt,
		})
	if res.Error != nil {
		return model.InventoryLogEntry{}, classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return model.InventoryLogEntry{}, fmt.Errorf("%w: quantity of product %d changed since read", repo.ErrTransient, entry.ProductID)
	}

	if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return model.InventoryLogEntry{}, classify(err)
	}
	return entry, nil
}

// false/0 もDBのDEFAULTに置き換えずそのまま書く
func (r *InventoryGormRepository) Create(ctx context.Context, rec model.InventoryRecord) error {
	if err := r.db.WithContext(ctx).Select("*").Create(&rec).Error; err != nil {
		return classify(err)
	}
	return nil
}

type InventoryLogGormRepository struct {
	db *gorm.DB
}

func NewInventoryLogGormRepository(db *gorm.DB) *InventoryLogGormRepository {
	return &InventoryLogGormRepository{db: db}
}

func (r *InventoryLogGormRepository) ListByProductID(ctx context.Context, productID int64, limit int) ([]model.InventoryLogEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var logs []model.InventoryLogEntry
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("id desc").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, classify(err)
	}
	return logs, nil
}

func (r *InventoryLogGormRepository) SumDeltas(ctx context.Context, productID int64) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&model.InventoryLogEntry{}).
		Where("product_id = ?", productID).
		Select("COALESCE(SUM(quantity_delta), 0)").
		Scan(&sum).Error
	if err != nil {
		return 0, classify(err)
	}
	return sum, nil
}
