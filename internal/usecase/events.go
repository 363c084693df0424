package usecase

import (
	"context"
	"time"

	"storefront/internal/domain/model"

	"go.uber.org/zap"
)

// コミット後のイベント送信先（Kafkaなど）
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, ev model.OrderEvent) error
	PublishInventoryEvent(ctx context.Context, ev model.InventoryEvent) error
}

type NoopPublisher struct{}

func (NoopPublisher) PublishOrderEvent(context.Context, model.OrderEvent) error         { return nil }
func (NoopPublisher) PublishInventoryEvent(context.Context, model.InventoryEvent) error { return nil }

// ベストエフォート。送れなくてもリクエストは失敗させない
type eventEmitter struct {
	pub EventPublisher
	log *zap.Logger
}

func newEventEmitter(pub EventPublisher, log *zap.Logger) eventEmitter {
	if pub == nil {
		pub = NoopPublisher{}
	}
	return eventEmitter{pub: pub, log: log}
}

func (e eventEmitter) order(ctx context.Context, typ model.OrderEventType, res TransitionResult, actor model.AuthenticatedUser, reason string, at time.Time) {
	o := res.Order
	ev := model.OrderEvent{
		Type:           typ,
		OrderID:        o.ID,
		OrderNumber:    o.OrderNumber,
		UserID:         o.UserID,
		Status:         o.Status,
		PreviousStatus: res.Before.Status,
		PaymentStatus:  o.PaymentStatus,
		Reason:         reason,
		ActorID:        actor.ID,
		OccurredAt:     at,
	}
	if err := e.pub.PublishOrderEvent(ctx, ev); err != nil {
		e.log.Warn("publish order event failed",
			zap.String("type", string(typ)), zap.Int64("order_id", o.ID), zap.Error(err))
	}
}

// 在庫変更ごとに adjusted、しきい値を割ったら low_stock も
func (e eventEmitter) inventory(ctx context.Context, adjustments []AdjustResult) {
	for _, a := range adjustments {
		ev := model.InventoryEvent{
			Type:              model.InventoryEventAdjusted,
			ProductID:         a.Entry.ProductID,
			LogType:           a.Entry.Type,
			QuantityDelta:     a.Entry.QuantityDelta,
			Quantity:          a.Record.Quantity,
			AvailableQuantity: a.Record.AvailableQuantity(),
			LowStockThreshold: a.Record.LowStockThreshold,
			OrderID:           a.Entry.OrderID,
			OccurredAt:        a.Entry.CreatedAt,
		}
		e.publishInventory(ctx, ev)
		if a.BecameLowStock {
			ev.Type = model.InventoryEventLowStock
			e.publishInventory(ctx, ev)
		}
	}
}

func (e eventEmitter) publishInventory(ctx context.Context, ev model.InventoryEvent) {
	if err := e.pub.PublishInventoryEvent(ctx, ev); err != nil {
		e.log.Warn("publish inventory event failed",
			zap.String("type", string(ev.Type)), zap.Int64("product_id", ev.ProductID), zap.Error(err))
	}
}
