package repository

import (
	"context"

	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	orders        repo.OrderRepository
	inventory     repo.InventoryRepository
	inventoryLogs repo.InventoryLogRepository
	idempotency   repo.IdempotencyRepository
	auditLogs     repo.AuditLogRepository
}

func (r *txReposGorm) Orders() repo.OrderRepository               { return r.orders }
func (r *txReposGorm) Inventory() repo.InventoryRepository        { return r.inventory }
func (r *txReposGorm) InventoryLogs() repo.InventoryLogRepository { return r.inventoryLogs }
func (r *txReposGorm) Idempotency() repo.IdempotencyRepository    { return r.idempotency }
func (r *txReposGorm) AuditLogs() repo.AuditLogRepository         { return r.auditLogs }

// dbに紐づいたリポジトリ一式。Tx外の読み取りにも使う
func NewRepos(db *gorm.DB) repo.TxRepos {
	return &txReposGorm{
		orders:        NewOrderGormRepository(db),
		inventory:     NewInventoryGormRepository(db),
		inventoryLogs: NewInventoryLogGormRepository(db),
		idempotency:   NewIdempotencyGormRepository(db),
		auditLogs:     NewAuditLogGormRepository(db),
	}
}

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

// READ COMMITTED + 行ロック。COMMIT失敗もclassifyしてリトライ判定に乗せる
func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	err := tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		return fn(NewRepos(tx))
	})
	return classify(err)
}
