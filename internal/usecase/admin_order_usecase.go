package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

type AdminOrderUsecase struct {
	exec    *TxExecutor
	machine *OrderStateMachine
	orders  repo.OrderRepository
	events  eventEmitter
	clock   Clock
	log     *zap.Logger
}

func NewAdminOrderUsecase(exec *TxExecutor, machine *OrderStateMachine, orders repo.OrderRepository, publisher EventPublisher, clock Clock, log *zap.Logger) *AdminOrderUsecase {
	if clock == nil {
		clock = SystemClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminOrderUsecase{
		exec:    exec,
		machine: machine,
		orders:  orders,
		events:  newEventEmitter(publisher, log),
		clock:   clock,
		log:     log,
	}
}

type AdminUpdateOrderStatusInput struct {
	Status string
	Reason string
}

type AdminUpdatePaymentStatusInput struct {
	PaymentStatus string
}

func requireAdmin(actor model.AuthenticatedUser) error {
	if actor.ID <= 0 {
		return ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

// 注文一覧
func (u *AdminOrderUsecase) List(ctx context.Context, actor model.AuthenticatedUser, f repo.AdminOrderListFilter) (OrderListOutput, error) {
	if err := requireAdmin(actor); err != nil {
		return OrderListOutput{}, err
	}
	// page/limitの最低限チェック
	if f.Page < 1 {
		return OrderListOutput{}, fmt.Errorf("%w: invalid page", ErrInvalidInput)
	}
	if f.Limit < 1 || f.Limit > 100 {
		return OrderListOutput{}, fmt.Errorf("%w: invalid limit", ErrInvalidInput)
	}
	if f.Status != "" {
		if _, ok := model.ParseOrderStatus(f.Status); !ok {
			return OrderListOutput{}, fmt.Errorf("%w: invalid status", ErrInvalidInput)
		}
	}
	if f.PaymentStatus != "" {
		if _, ok := model.ParsePaymentStatus(f.PaymentStatus); !ok {
			return OrderListOutput{}, fmt.Errorf("%w: invalid payment status", ErrInvalidInput)
		}
	}

	orders, total, err := u.orders.ListAdmin(ctx, f)
	if err != nil {
		return OrderListOutput{}, err
	}
	outs := make([]OrderOutput, 0, len(orders))
	for _, o := range orders {
		outs = append(outs, toOrderOutput(o))
	}
	return OrderListOutput{Items: outs, Total: total, Page: f.Page, Limit: f.Limit}, nil
}

// ステータス更新（cancelledなら在庫戻し）。監査ログも同じTxで書く
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actor model.AuthenticatedUser, orderID int64, in AdminUpdateOrderStatusInput) (OrderOutput, error) {
	if err := requireAdmin(actor); err != nil {
		return OrderOutput{}, err
	}
	if orderID <= 0 {
		return OrderOutput{}, fmt.Errorf("%w: invalid order id", ErrInvalidInput)
	}
	target, ok := model.ParseOrderStatus(strings.TrimSpace(in.Status))
	if !ok {
		return OrderOutput{}, fmt.Errorf("%w: invalid status", ErrInvalidInput)
	}
	reason := strings.TrimSpace(in.Reason)
	if len(reason) > maxReasonLen {
		return OrderOutput{}, fmt.Errorf("%w: reason too long", ErrInvalidInput)
	}

	res, err := RunWithRetryValue(ctx, u.exec, func(ctx context.Context, r repo.TxRepos) (TransitionResult, error) {
		res, err := u.machine.Transition(ctx, r, orderID, target, actor, reason)
		if err != nil {
			return TransitionResult{}, err
		}
		if !res.Changed {
			return res, nil
		}
		if err := u.audit(ctx, r, actor, model.AuditActionUpdateOrderStatus, orderID,
			map[string]string{"status": string(res.Before.Status), "payment_status": string(res.Before.PaymentStatus)},
			map[string]string{"status": string(res.Order.Status), "payment_status": string(res.Order.PaymentStatus)},
		); err != nil {
			return TransitionResult{}, err
		}
		return res, nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	if res.Changed {
		typ := model.OrderEventStatusChanged
		if res.Order.Status == model.OrderStatusCancelled {
			typ = model.OrderEventCancelled
		}
		u.events.order(ctx, typ, res, actor, reason, u.clock.Now())
		u.events.inventory(ctx, res.Adjustments)
		u.log.Info("order status updated",
			zap.Int64("order_id", orderID),
			zap.String("from", string(res.Before.Status)),
			zap.String("to", string(res.Order.Status)),
			zap.Int64("actor_id", actor.ID),
		)
	}
	return toOrderOutput(res.Order), nil
}

func (u *AdminOrderUsecase) UpdatePaymentStatus(ctx context.Context, actor model.AuthenticatedUser, orderID int64, in AdminUpdatePaymentStatusInput) (OrderOutput, error) {
	if err := requireAdmin(actor); err != nil {
		return OrderOutput{}, err
	}
	if orderID <= 0 {
		return OrderOutput{}, fmt.Errorf("%w: invalid order id", ErrInvalidInput)
	}
	target, ok := model.ParsePaymentStatus(strings.TrimSpace(in.PaymentStatus))
	if !ok {
		return OrderOutput{}, fmt.Errorf("%w: invalid payment status", ErrInvalidInput)
	}

	res, err := RunWithRetryValue(ctx, u.exec, func(ctx context.Context, r repo.TxRepos) (TransitionResult, error) {
		res, err := u.machine.TransitionPayment(ctx, r, orderID, target, actor)
		if err != nil {
			return TransitionResult{}, err
		}
		if !res.Changed {
			return res, nil
		}
		if err := u.audit(ctx, r, actor, model.AuditActionUpdatePaymentStatus, orderID,
			map[string]string{"payment_status": string(res.Before.PaymentStatus)},
			map[string]string{"payment_status": string(res.Order.PaymentStatus)},
		); err != nil {
			return TransitionResult{}, err
		}
		return res, nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	if res.Changed {
		u.log.Info("payment status updated",
			zap.Int64("order_id", orderID),
			zap.String("from", string(res.Before.PaymentStatus)),
			zap.String("to", string(res.Order.PaymentStatus)),
			zap.Int64("actor_id", actor.ID),
		)
	}
	return toOrderOutput(res.Order), nil
}

func (u *AdminOrderUsecase) audit(ctx context.Context, r repo.TxRepos, actor model.AuthenticatedUser, action model.AuditAction, orderID int64, before, after any) error {
	return writeAudit(ctx, r, u.clock, actor, action, model.AuditResourceOrder, orderID, before, after)
}

func writeAudit(ctx context.Context, r repo.TxRepos, clock Clock, actor model.AuthenticatedUser, action model.AuditAction, resource model.AuditResourceType, resourceID int64, before, after any) error {
	b, err := json.Marshal(before)
	if err != nil {
		return fmt.Errorf("marshal audit before: %w", err)
	}
	a, err := json.Marshal(after)
	if err != nil {
		return fmt.Errorf("marshal audit after: %w", err)
	}
	return r.AuditLogs().Create(ctx, model.AuditLog{
		ActorUserID:  actor.ID,
		Action:       action,
		ResourceType: resource,
		ResourceID:   resourceID,
		BeforeJSON:   string(b),
		AfterJSON:    string(a),
		CreatedAt:    clock.Now(),
	})
}
