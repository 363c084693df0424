package model

import "time"

// 商品ごとの在庫。
// Quantity / ReservedQuantity は在庫台帳(InventoryLedger)経由でしか変更しない。
type InventoryRecord struct {
	ProductID         int64     `gorm:"primaryKey;autoIncrement:false" json:"product_id"`
	Quantity          int64     `gorm:"not null" json:"quantity"`
	ReservedQuantity  int64     `gorm:"not null;default:0" json:"reserved_quantity"`
	LowStockThreshold int64     `gorm:"not null;default:0" json:"low_stock_threshold"`
	TrackQuantity     bool      `gorm:"not null" json:"track_quantity"`
	AllowBackorder    bool      `gorm:"not null" json:"allow_backorder"`
	UpdatedAt         time.Time `gorm:"not null" json:"updated_at"`
}

func (InventoryRecord) TableName() string { return "inventory_records" }

func (r InventoryRecord) AvailableQuantity() int64 {
	return r.Quantity - r.ReservedQuantity
}

func (r InventoryRecord) IsLowStock() bool {
	return r.TrackQuantity && r.AvailableQuantity() <= r.LowStockThreshold
}

func (r InventoryRecord) IsOutOfStock() bool {
	return r.TrackQuantity && !r.AllowBackorder && r.AvailableQuantity() <= 0
}

// 台帳エントリを適用した後の状態（コピー）を返す。保存はしない
func (r InventoryRecord) Applied(entry InventoryLogEntry) InventoryRecord {
	r.Quantity = entry.NewQuantity
	r.UpdatedAt = entry.CreatedAt
	return r
}

func (r InventoryRecord) Summary() InventorySummary {
	return InventorySummary{
		ProductID:         r.ProductID,
		Quantity:          r.Quantity,
		ReservedQuantity:  r.ReservedQuantity,
		AvailableQuantity: r.AvailableQuantity(),
		LowStockThreshold: r.LowStockThreshold,
		TrackQuantity:     r.TrackQuantity,
		AllowBackorder:    r.AllowBackorder,
		IsLowStock:        r.IsLowStock(),
		IsOutOfStock:      r.IsOutOfStock(),
	}
}

// 派生値込みの在庫サマリ（保存しない）
type InventorySummary struct {
	ProductID         int64 `json:"product_id"`
	Quantity          int64 `json:"quantity"`
	ReservedQuantity  int64 `json:"reserved_quantity"`
	AvailableQuantity int64 `json:"available_quantity"`
	LowStockThreshold int64 `json:"low_stock_threshold"`
	TrackQuantity     bool  `json:"track_quantity"`
	AllowBackorder    bool  `json:"allow_backorder"`
	IsLowStock        bool  `json:"is_low_stock"`
	IsOutOfStock      bool  `json:"is_out_of_stock"`
}
