package repository

import "context"

// トランザクション内で使うリポジトリ一式。
// 状態を変える処理はこれを明示的に受け取る。
type TxRepos interface {
	Orders() OrderRepository
	Inventory() InventoryRepository
	InventoryLogs() InventoryLogRepository
	Idempotency() IdempotencyRepository
	AuditLogs() AuditLogRepository
}

// UsecaseからTxの開始/commit/rollbackを隠す。
// fnがエラーを返せばrollback、nilならcommit。
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}
