package model

import (
	"encoding/json"
	"time"
)

// 冪等キーの記録。(scope, key) はDBのユニーク制約で一意。
// 一度書いたら更新しない。
type IdempotencyRecord struct {
	ID         int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Scope      string          `gorm:"type:varchar(64);not null;uniqueIndex:ux_idempotency_scope_key,priority:1" json:"scope"`
	Key        string          `gorm:"type:varchar(320);not null;uniqueIndex:ux_idempotency_scope_key,priority:2" json:"key"`
	ResourceID string          `gorm:"type:varchar(64);not null" json:"resource_id"`
	Result     json.RawMessage `gorm:"type:jsonb;not null" json:"result"`
	CreatedAt  time.Time       `gorm:"not null" json:"created_at"`
}

func (IdempotencyRecord) TableName() string { return "idempotency_records" }
