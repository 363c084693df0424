package usecase

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// 注文ステータスの遷移表。cancelled / refunded からは出られない
var orderTransitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderStatusPending:    {model.OrderStatusConfirmed, model.OrderStatusCancelled},
	model.OrderStatusConfirmed:  {model.OrderStatusProcessing, model.OrderStatusCancelled},
	model.OrderStatusProcessing: {model.OrderStatusShipped, model.OrderStatusCancelled},
	model.OrderStatusShipped:    {model.OrderStatusDelivered, model.OrderStatusCancelled},
	model.OrderStatusDelivered:  {model.OrderStatusRefunded},
}

// 支払いステータスの遷移表。refundedからpaidへは戻れない
var paymentTransitions = map[model.PaymentStatus][]model.PaymentStatus{
	model.PaymentStatusPending:           {model.PaymentStatusPaid, model.PaymentStatusFailed},
	model.PaymentStatusFailed:            {model.PaymentStatusPending, model.PaymentStatusPaid},
	model.PaymentStatusPaid:              {model.PaymentStatusRefunded, model.PaymentStatusPartiallyRefunded},
	model.PaymentStatusPartiallyRefunded: {model.PaymentStatusRefunded, model.PaymentStatusPartiallyRefunded},
	model.PaymentStatusRefunded:          {model.PaymentStatusRefunded, model.PaymentStatusPartiallyRefunded},
}

func CanTransition(from, to model.OrderStatus) bool {
	return slices.Contains(orderTransitions[from], to)
}

func CanTransitionPayment(from, to model.PaymentStatus) bool {
	return slices.Contains(paymentTransitions[from], to)
}

type TransitionResult struct {
	Before model.Order
	Order  model.Order
	// 同じステータス指定なら false（何もしていない）
	Changed bool
	// キャンセル時の在庫戻し
	Adjustments []AdjustResult
}

// 注文の状態遷移。すべて呼び出し元のTx(r)の中で行う。
type OrderStateMachine struct {
	ledger *InventoryLedger
	clock  Clock
}

func NewOrderStateMachine(ledger *InventoryLedger, clock Clock) *OrderStateMachine {
	if clock == nil {
		clock = SystemClock()
	}
	return &OrderStateMachine{ledger: ledger, clock: clock}
}

// 注文をロックして取る。他人の注文は存在しない扱い（管理者は除く）
func (m *OrderStateMachine) load(ctx context.Context, r repo.TxRepos, orderID int64, actor model.AuthenticatedUser) (model.Order, error) {
	o, err := r.Orders().LockByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
	}
	if err != nil {
		return model.Order{}, err
	}
	if !actor.IsAdmin() && !o.IsOwnedBy(actor.ID) {
		return model.Order{}, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
	}
	return o, nil
}

// キャンセル。明細ごとに在庫を1回だけ戻し、支払い済みなら返金扱いにする。
// idempotencyKeyは空でもよい（管理者操作など）
func (m *OrderStateMachine) Cancel(ctx context.Context, r repo.TxRepos, orderID int64, actor model.AuthenticatedUser, reason, idempotencyKey string) (TransitionResult, error) {
	o, err := m.load(ctx, r, orderID, actor)
	if err != nil {
		return TransitionResult{}, err
	}
	return m.cancelLocked(ctx, r, o, actor, reason, idempotencyKey)
}

func (m *OrderStateMachine) cancelLocked(ctx context.Context, r repo.TxRepos, o model.Order, actor model.AuthenticatedUser, reason, idempotencyKey string) (TransitionResult, error) {
	switch o.Status {
	case model.OrderStatusCancelled:
		return TransitionResult{}, fmt.Errorf("%w: order %d", ErrAlreadyCancelled, o.ID)
	case model.OrderStatusDelivered, model.OrderStatusRefunded:
		return TransitionResult{}, fmt.Errorf("%w: cannot cancel %s order %d", ErrInvalidTransition, o.Status, o.ID)
	}
	if !CanTransition(o.Status, model.OrderStatusCancelled) {
		return TransitionResult{}, fmt.Errorf("%w: %s -> cancelled", ErrInvalidTransition, o.Status)
	}

	before := o
	reason = strings.TrimSpace(reason)

	//商品ID順にロックする（デッドロック回避）
	items := slices.Clone(o.Items)
	slices.SortStableFunc(items, func(a, b model.OrderItem) int {
		if a.ProductID != b.ProductID {
			return cmp.Compare(a.ProductID, b.ProductID)
		}
		return cmp.Compare(a.ID, b.ID)
	})

	orderID := o.ID
	adjustments := make([]AdjustResult, 0, len(items))
	for _, it := range items {
		res, err := m.ledger.Adjust(ctx, r, AdjustInput{
			ProductID:   it.ProductID,
			Delta:       it.Quantity,
			Type:        model.InventoryLogCancellation,
			Reason:      reason,
			OrderID:     &orderID,
			PerformedBy: actor.PerformedBy(),
		})
		if err != nil {
			return TransitionResult{}, err
		}
		adjustments = append(adjustments, res)
	}

	now := m.clock.Now()
	o.Status = model.OrderStatusCancelled
	o.CancelledAt = &now
	if reason != "" {
		o.CancelledReason = &reason
	}
	if o.PaymentStatus == model.PaymentStatusPaid {
		o.PaymentStatus = model.PaymentStatusRefunded
	}
	if o.IdempotencyKey == nil && idempotencyKey != "" {
		k := idempotencyKey
		o.IdempotencyKey = &k
	}
	o.UpdatedAt = now

	if err := r.Orders().UpdateState(ctx, o); err != nil {
		return TransitionResult{}, err
	}
	return TransitionResult{Before: before, Order: o, Changed: true, Adjustments: adjustments}, nil
}

// 出荷・配達・返品などのステータス更新。cancelledはCancelと同じ処理になる。
// 返品(refunded)で在庫は戻さない（戻すなら在庫調整のreturnで行う）
func (m *OrderStateMachine) Transition(ctx context.Context, r repo.TxRepos, orderID int64, target model.OrderStatus, actor model.AuthenticatedUser, reason string) (TransitionResult, error) {
	o, err := m.load(ctx, r, orderID, actor)
	if err != nil {
		return TransitionResult{}, err
	}

	// すでに同じなら何もしない
	if o.Status == target {
		return TransitionResult{Before: o, Order: o}, nil
	}
	if target == model.OrderStatusCancelled {
		return m.cancelLocked(ctx, r, o, actor, reason, "")
	}
	if !CanTransition(o.Status, target) {
		return TransitionResult{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, target)
	}

	before := o
	o.Status = target
	if target == model.OrderStatusRefunded &&
		(o.PaymentStatus == model.PaymentStatusPaid || o.PaymentStatus == model.PaymentStatusPartiallyRefunded) {
		o.PaymentStatus = model.PaymentStatusRefunded
	}
	o.UpdatedAt = m.clock.Now()

	if err := r.Orders().UpdateState(ctx, o); err != nil {
		return TransitionResult{}, err
	}
	return TransitionResult{Before: before, Order: o, Changed: true}, nil
}

func (m *OrderStateMachine) TransitionPayment(ctx context.Context, r repo.TxRepos, orderID int64, target model.PaymentStatus, actor model.AuthenticatedUser) (TransitionResult, error) {
	o, err := m.load(ctx, r, orderID, actor)
	if err != nil {
		return TransitionResult{}, err
	}
	if !CanTransitionPayment(o.PaymentStatus, target) {
		if o.PaymentStatus == target {
			return TransitionResult{Before: o, Order: o}, nil
		}
		return TransitionResult{}, fmt.Errorf("%w: payment %s -> %s", ErrInvalidTransition, o.PaymentStatus, target)
	}
	//キャンセル済みの注文は新たに支払い済みにしない
	if o.Status == model.OrderStatusCancelled && target == model.PaymentStatusPaid {
		return TransitionResult{}, fmt.Errorf("%w: order %d is cancelled", ErrInvalidTransition, o.ID)
	}

	before := o
	o.PaymentStatus = target
	o.UpdatedAt = m.clock.Now()
	if err := r.Orders().UpdateState(ctx, o); err != nil {
		return TransitionResult{}, err
	}
	return TransitionResult{Before: before, Order: o, Changed: before.PaymentStatus != target}, nil
}
