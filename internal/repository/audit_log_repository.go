package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

// nilの項目は条件にしない
type AuditLogFilter struct {
	ActorUserID  *int64
	Action       *model.AuditAction
	ResourceType *model.AuditResourceType
	ResourceID   *int64
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Limit        int
	Offset       int
}

// 管理者操作の記録。注文・在庫を変えたTxと同じTxで書く
type AuditLogRepository interface {
	Create(ctx context.Context, log model.AuditLog) error

	// 新しい順。totalはページング前の件数
	List(ctx context.Context, filter AuditLogFilter) ([]model.AuditLog, int64, error)
}
