package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type InventoryRepository interface {
	FindByProductID(ctx context.Context, productID int64) (model.InventoryRecord, error)

	// 行ロックして取得。Tx内でだけ使う
	LockByProductID(ctx context.Context, productID int64) (model.InventoryRecord, error)

	// 在庫の変更はここだけ。
	// quantity = entry.PreviousQuantity のときだけ NewQuantity に更新し、ログを1件追加する。
	// 前提の数量と合わなければ ErrTransient。
	ApplyDelta(ctx context.Context, entry model.InventoryLogEntry) (model.InventoryLogEntry, error)

	// 商品登録時の初期在庫（ログは呼び出し側が台帳経由で書く）
	Create(ctx context.Context, rec model.InventoryRecord) error
}

type InventoryLogRepository interface {
	// 新しい順
	ListByProductID(ctx context.Context, productID int64, limit int) ([]model.InventoryLogEntry, error)

	// 照合用。全ログのdelta合計
	SumDeltas(ctx context.Context, productID int64) (int64, error)
}
