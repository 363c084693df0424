package model

import "time"

type InventoryLogType string

const (
	InventoryLogRestock      InventoryLogType = "restock"
	InventoryLogSale         InventoryLogType = "sale"
	InventoryLogAdjustment   InventoryLogType = "adjustment"
	InventoryLogReturn       InventoryLogType = "return"
	InventoryLogCancellation InventoryLogType = "cancellation"
)

func ParseInventoryLogType(s string) (InventoryLogType, bool) {
	switch t := InventoryLogType(s); t {
	case InventoryLogRestock, InventoryLogSale, InventoryLogAdjustment,
		InventoryLogReturn, InventoryLogCancellation:
		return t, true
	}
	return "", false
}

// 在庫変更1回ごとの履歴。作成後は更新も削除もしない。
type InventoryLogEntry struct {
	ID               int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID        int64            `gorm:"not null;index" json:"product_id"`
	Type             InventoryLogType `gorm:"type:varchar(20);not null" json:"type"`
	QuantityDelta    int64            `gorm:"not null" json:"quantity_delta"`
	PreviousQuantity int64            `gorm:"not null" json:"previous_quantity"`
	NewQuantity      int64            `gorm:"not null" json:"new_quantity"`
	Reason           string           `gorm:"type:varchar(500);not null;default:''" json:"reason"`

	//注文起因のときだけ入る
	OrderID *int64 `gorm:"index" json:"order_id,omitempty"`

	//ユーザーIDの文字列 or "system"
	PerformedBy string    `gorm:"type:varchar(64);not null" json:"performed_by"`
	CreatedAt   time.Time `gorm:"not null;index" json:"created_at"`
}

func (InventoryLogEntry) TableName() string { return "inventory_logs" }
