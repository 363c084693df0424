package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

// 管理者の在庫操作。数量の変更はすべて台帳(Adjust)経由
type AdminInventoryUsecase struct {
	exec   *TxExecutor
	ledger *InventoryLedger
	logs   repo.InventoryLogRepository
	events eventEmitter
	clock  Clock
	log    *zap.Logger
}

func NewAdminInventoryUsecase(exec *TxExecutor, ledger *InventoryLedger, logs repo.InventoryLogRepository, publisher EventPublisher, clock Clock, log *zap.Logger) *AdminInventoryUsecase {
	if clock == nil {
		clock = SystemClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminInventoryUsecase{
		exec:   exec,
		ledger: ledger,
		logs:   logs,
		events: newEventEmitter(publisher, log),
		clock:  clock,
		log:    log,
	}
}

type AdminCreateInventoryInput struct {
	ProductID         int64
	InitialQuantity   int64
	LowStockThreshold int64
	TrackQuantity     bool
	AllowBackorder    bool
}

type AdminAdjustInventoryInput struct {
	Delta  int64
	Type   string
	Reason string
}

type AdjustmentOutput struct {
	ProductID        int64                  `json:"product_id"`
	PreviousQuantity int64                  `json:"previous_quantity"`
	NewQuantity      int64                  `json:"new_quantity"`
	Entry            model.InventoryLogEntry `json:"entry"`
	Summary          model.InventorySummary  `json:"summary"`
}

type ReconcileOutput struct {
	ProductID   int64 `json:"product_id"`
	Quantity    int64 `json:"quantity"`
	LoggedTotal int64 `json:"logged_total"`
	// quantity == ログのdelta合計
	Consistent bool `json:"consistent"`
}

// 在庫レコード作成。初期数量は0で作ってrestockで積む（ログが必ず残る）
func (u *AdminInventoryUsecase) CreateRecord(ctx context.Context, actor model.AuthenticatedUser, in AdminCreateInventoryInput) (model.InventorySummary, error) {
	if err := requireAdmin(actor); err != nil {
		return model.InventorySummary{}, err
	}
	if in.ProductID <= 0 {
		return model.InventorySummary{}, fmt.Errorf("%w: invalid product id", ErrInvalidInput)
	}
	if in.InitialQuantity < 0 || in.LowStockThreshold < 0 {
		return model.InventorySummary{}, fmt.Errorf("%w: quantities must be >= 0", ErrInvalidInput)
	}

	rec, err := RunWithRetryValue(ctx, u.exec, func(ctx context.Context, r repo.TxRepos) (model.InventoryRecord, error) {
		rec := model.InventoryRecord{
			ProductID:         in.ProductID,
			LowStockThreshold: in.LowStockThreshold,
			TrackQuantity:     in.TrackQuantity,
			AllowBackorder:    in.AllowBackorder,
			UpdatedAt:         u.clock.Now(),
		}
		if err := r.Inventory().Create(ctx, rec); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return model.InventoryRecord{}, fmt.Errorf("%w: inventory for product %d already exists", ErrInvalidInput, in.ProductID)
			}
			return model.InventoryRecord{}, err
		}
		if in.InitialQuantity > 0 {
			res, err := u.ledger.Adjust(ctx, r, AdjustInput{
				ProductID:   in.ProductID,
				Delta:       in.InitialQuantity,
				Type:        model.InventoryLogRestock,
				Reason:      "initial stock",
				PerformedBy: actor.PerformedBy(),
			})
			if err != nil {
				return model.InventoryRecord{}, err
			}
			rec = res.Record
		}
		return rec, nil
	})
	if err != nil {
		return model.InventorySummary{}, err
	}

	u.log.Info("inventory record created", zap.Int64("product_id", in.ProductID), zap.Int64("quantity", rec.Quantity))
	return rec.Summary(), nil
}

// 手動の在庫調整。sale / cancellation は注文処理専用なのでここでは受けない
func (u *AdminInventoryUsecase) Adjust(ctx context.Context, actor model.AuthenticatedUser, productID int64, in AdminAdjustInventoryInput) (AdjustmentOutput, error) {
	if err := requireAdmin(actor); err != nil {
		return AdjustmentOutput{}, err
	}
	typ, ok := model.ParseInventoryLogType(strings.TrimSpace(in.Type))
	if !ok {
		return AdjustmentOutput{}, fmt.Errorf("%w: invalid type", ErrInvalidInput)
	}
	switch typ {
	case model.InventoryLogRestock, model.InventoryLogAdjustment, model.InventoryLogReturn:
	default:
		return AdjustmentOutput{}, fmt.Errorf("%w: %s is not a manual adjustment", ErrInvalidInput, typ)
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return AdjustmentOutput{}, fmt.Errorf("%w: reason is required", ErrInvalidInput)
	}

	res, err := RunWithRetryValue(ctx, u.exec, func(ctx context.Context, r repo.TxRepos) (AdjustResult, error) {
		res, err := u.ledger.Adjust(ctx, r, AdjustInput{
			ProductID:   productID,
			Delta:       in.Delta,
			Type:        typ,
			Reason:      reason,
			PerformedBy: actor.PerformedBy(),
		})
		if err != nil {
			return AdjustResult{}, err
		}
		if err := writeAudit(ctx, r, u.clock, actor, model.AuditActionAdjustStock, model.AuditResourceInventory, productID,
			map[string]int64{"quantity": res.PreviousQuantity},
			map[string]int64{"quantity": res.NewQuantity},
		); err != nil {
			return AdjustResult{}, err
		}
		return res, nil
	})
	if err != nil {
		return AdjustmentOutput{}, err
	}

	u.events.inventory(ctx, []AdjustResult{res})
	u.log.Info("inventory adjusted",
		zap.Int64("product_id", productID),
		zap.String("type", string(typ)),
		zap.Int64("delta", in.Delta),
		zap.Int64("actor_id", actor.ID),
	)
	return AdjustmentOutput{
		ProductID:        productID,
		PreviousQuantity: res.PreviousQuantity,
		NewQuantity:      res.NewQuantity,
		Entry:            res.Entry,
		Summary:          res.Record.Summary(),
	}, nil
}

func (u *AdminInventoryUsecase) ListLog(ctx context.Context, actor model.AuthenticatedUser, productID int64, limit int) ([]model.InventoryLogEntry, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if productID <= 0 {
		return nil, fmt.Errorf("%w: invalid product id", ErrInvalidInput)
	}
	if limit < 0 || limit > 200 {
		return nil, fmt.Errorf("%w: invalid limit", ErrInvalidInput)
	}
	return u.logs.ListByProductID(ctx, productID, limit)
}

// 照合。在庫レコードは0から作るので、ログのdelta合計と現在数量が一致するはず
func (u *AdminInventoryUsecase) Reconcile(ctx context.Context, actor model.AuthenticatedUser, productID int64) (ReconcileOutput, error) {
	if err := requireAdmin(actor); err != nil {
		return ReconcileOutput{}, err
	}
	summary, err := u.ledger.Summarize(ctx, productID)
	if err != nil {
		return ReconcileOutput{}, err
	}
	total, err := u.logs.SumDeltas(ctx, productID)
	if err != nil {
		return ReconcileOutput{}, err
	}

	out := ReconcileOutput{
		ProductID:   productID,
		Quantity:    summary.Quantity,
		LoggedTotal: total,
		Consistent:  summary.Quantity == total,
	}
	if !out.Consistent {
		u.log.Error("inventory ledger mismatch",
			zap.Int64("product_id", productID),
			zap.Int64("quantity", out.Quantity),
			zap.Int64("logged_total", total),
		)
	}
	return out, nil
}
