package repository

import (
	"context"
	"time"

	"storefront/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page          int
	Limit         int
	Status        string
	PaymentStatus string
	UserID        *int64
	From          *time.Time
	To            *time.Time
}

type OrderRepository interface {
	// Items込みで1件取得
	FindByID(ctx context.Context, orderID int64) (model.Order, error)

	// 行ロック（SELECT ... FOR UPDATE）して取得。Tx内でだけ使う
	LockByID(ctx context.Context, orderID int64) (model.Order, error)

	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error)

	// Items も一緒に作る。IDが埋まった注文を返す
	Create(ctx context.Context, order model.Order) (model.Order, error)

	// 状態・支払い状態・キャンセル情報・冪等キーだけ更新（Itemsは触らない）
	UpdateState(ctx context.Context, order model.Order) error

	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)
}
