package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

type AdjustInput struct {
	ProductID   int64
	Delta       int64
	Type        model.InventoryLogType
	Reason      string
	OrderID     *int64
	PerformedBy string
}

type AdjustResult struct {
	PreviousQuantity int64
	NewQuantity      int64
	Entry            model.InventoryLogEntry
	Record           model.InventoryRecord
	// この変更でしきい値を下回った
	BecameLowStock bool
}

// 在庫台帳。quantityの変更はすべてここを通し、1変更につきログ1件を書く。
type InventoryLedger struct {
	inventory repo.InventoryRepository
	clock     Clock
}

func NewInventoryLedger(inventory repo.InventoryRepository, clock Clock) *InventoryLedger {
	if clock == nil {
		clock = SystemClock()
	}
	return &InventoryLedger{inventory: inventory, clock: clock}
}

// 呼び出し元のTx(r)の中で実行する。単独のTxは張らない。
func (l *InventoryLedger) Adjust(ctx context.Context, r repo.TxRepos, in AdjustInput) (AdjustResult, error) {
	if err := validateAdjust(in); err != nil {
		return AdjustResult{}, err
	}
	performedBy := strings.TrimSpace(in.PerformedBy)
	if performedBy == "" {
		performedBy = "system"
	}

	rec, err := r.Inventory().LockByProductID(ctx, in.ProductID)
	if errors.Is(err, repo.ErrNotFound) {
		return AdjustResult{}, fmt.Errorf("%w: product %d", ErrNotFound, in.ProductID)
	}
	if err != nil {
		return AdjustResult{}, err
	}

	prev := rec.Quantity
	next := prev + in.Delta
	//バックオーダー不可なら0未満にしない（黙って0に丸めることもしない）
	if in.Delta < 0 && rec.TrackQuantity && !rec.AllowBackorder && next < 0 {
		return AdjustResult{}, fmt.Errorf("%w: product %d has %d, requested %d", ErrOutOfStock, in.ProductID, prev, -in.Delta)
	}

	entry, err := r.Inventory().ApplyDelta(ctx, model.InventoryLogEntry{
		ProductID:        in.ProductID,
		Type:             in.Type,
		QuantityDelta:    in.Delta,
		PreviousQuantity: prev,
		NewQuantity:      next,
		Reason:           in.Reason,
		OrderID:          in.OrderID,
		PerformedBy:      performedBy,
		CreatedAt:        l.clock.Now(),
	})
	if err != nil {
		return AdjustResult{}, err
	}

	after := rec.Applied(entry)
	return AdjustResult{
		PreviousQuantity: prev,
		NewQuantity:      next,
		Entry:            entry,
		Record:           after,
		BecameLowStock:   !rec.IsLowStock() && after.IsLowStock(),
	}, nil
}

// 読み取りのみ
func (l *InventoryLedger) Summarize(ctx context.Context, productID int64) (model.InventorySummary, error) {
	if productID <= 0 {
		return model.InventorySummary{}, fmt.Errorf("%w: invalid product id", ErrInvalidInput)
	}
	rec, err := l.inventory.FindByProductID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.InventorySummary{}, fmt.Errorf("%w: product %d", ErrNotFound, productID)
	}
	if err != nil {
		return model.InventorySummary{}, err
	}
	return rec.Summary(), nil
}

func validateAdjust(in AdjustInput) error {
	if in.ProductID <= 0 {
		return fmt.Errorf("%w: invalid product id", ErrInvalidInput)
	}
	if in.Delta == 0 {
		return fmt.Errorf("%w: delta must not be zero", ErrInvalidInput)
	}
	if len(in.Reason) > 500 {
		return fmt.Errorf("%w: reason too long", ErrInvalidInput)
	}

	//種類ごとの符号
	switch in.Type {
	case model.InventoryLogSale:
		if in.Delta > 0 {
			return fmt.Errorf("%w: sale must decrease stock", ErrInvalidInput)
		}
	case model.InventoryLogRestock, model.InventoryLogReturn, model.InventoryLogCancellation:
		if in.Delta < 0 {
			return fmt.Errorf("%w: %s must increase stock", ErrInvalidInput, in.Type)
		}
	case model.InventoryLogAdjustment:
	default:
		return fmt.Errorf("%w: unknown log type %q", ErrInvalidInput, in.Type)
	}
	return nil
}
