package usecase

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 冪等キーのスコープ
const (
	ScopeCancelOrder = "cancel-order"
	ScopePlaceOrder  = "place-order"
)

const maxReasonLen = 500

// 注文確定（在庫を減らす）とキャンセル（在庫を戻す）を、
// 冪等チェック → リトライ付きTx の順でまとめる。
type OrderFulfillmentUsecase struct {
	exec    *TxExecutor
	idem    *IdempotencyStore
	machine *OrderStateMachine
	ledger  *InventoryLedger
	events  eventEmitter
	clock   Clock
	log     *zap.Logger
}

func NewOrderFulfillmentUsecase(
	exec *TxExecutor,
	idem *IdempotencyStore,
	machine *OrderStateMachine,
	ledger *InventoryLedger,
	publisher EventPublisher,
	clock Clock,
	log *zap.Logger,
) *OrderFulfillmentUsecase {
	if clock == nil {
		clock = SystemClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderFulfillmentUsecase{
		exec:    exec,
		idem:    idem,
		machine: machine,
		ledger:  ledger,
		events:  newEventEmitter(publisher, log),
		clock:   clock,
		log:     log,
	}
}

type CancelOrderInput struct {
	Reason         string
	IdempotencyKey string
}

type CancelledOrderSummary struct {
	ID          int64      `json:"id"`
	OrderNumber string     `json:"order_number"`
	Status      string     `json:"status"`
	CancelledAt *time.Time `json:"cancelled_at"`
}

type CancelOrderOutput struct {
	Success bool                  `json:"success"`
	Order   CancelledOrderSummary `json:"order"`
	// 保存済みの結果を返した
	Replayed bool `json:"-"`
}

func (u *OrderFulfillmentUsecase) CancelOrder(ctx context.Context, actor model.AuthenticatedUser, orderID int64, in CancelOrderInput) (CancelOrderOutput, error) {
	if actor.ID <= 0 {
		return CancelOrderOutput{}, ErrUnauthorized
	}
	if orderID <= 0 {
		return CancelOrderOutput{}, fmt.Errorf("%w: invalid order id", ErrInvalidInput)
	}
	reason := strings.TrimSpace(in.Reason)
	if len(reason) > maxReasonLen {
		return CancelOrderOutput{}, fmt.Errorf("%w: reason too long", ErrInvalidInput)
	}
	key, err := normalizeIdempotencyKey(in.IdempotencyKey)
	if err != nil {
		return CancelOrderOutput{}, err
	}
	if key == "" {
		key = u.idem.GenerateKey(ScopeCancelOrder)
	}
	scoped := ScopedKey(actor.ID, key)
	resourceID := strconv.FormatInt(orderID, 10)

	//実行済みなら在庫には触らずに前回の結果を返す
	chk, err := u.idem.CheckAndReserve(ctx, ScopeCancelOrder, scoped)
	if err != nil {
		return CancelOrderOutput{}, err
	}
	if chk.AlreadyCompleted {
		return u.replayCancel(chk.Record, resourceID)
	}

	type cancelled struct {
		res TransitionResult
		out CancelOrderOutput
		rec model.IdempotencyRecord
	}
	done, err := RunWithRetryValue(ctx, u.exec, func(ctx context.Context, r repo.TxRepos) (cancelled, error) {
		res, err := u.machine.Cancel(ctx, r, orderID, actor, reason, scoped)
		if err != nil {
			return cancelled{}, err
		}
		out := toCancelOrderOutput(res.Order)
		rec, err := u.idem.Record(ctx, r, ScopeCancelOrder, scoped, resourceID, out)
		if err != nil {
			return cancelled{}, err
		}
		return cancelled{res: res, out: out, rec: rec}, nil
	})
	if err != nil {
		//同じキーの別リクエストが先にコミットしていたらその結果を返す
		if errors.Is(err, repo.ErrDuplicate) || errors.Is(err, ErrAlreadyCancelled) {
			if chk, lerr := u.idem.CheckAndReserve(ctx, ScopeCancelOrder, scoped); lerr == nil && chk.AlreadyCompleted {
				return u.replayCancel(chk.Record, resourceID)
			}
		}
		if errors.Is(err, repo.ErrDuplicate) {
			return CancelOrderOutput{}, fmt.Errorf("%w: %w", ErrIdempotencyConflict, err)
		}
		u.logFailure("cancel order failed", err, zap.Int64("order_id", orderID), zap.Int64("actor_id", actor.ID))
		return CancelOrderOutput{}, err
	}

	u.idem.Remember(ctx, done.rec)
	u.events.order(ctx, model.OrderEventCancelled, done.res, actor, reason, u.clock.Now())
	u.events.inventory(ctx, done.res.Adjustments)

	u.log.Info("order cancelled",
		zap.Int64("order_id", orderID),
		zap.Int64("actor_id", actor.ID),
		zap.Int("restored_items", len(done.res.Adjustments)),
	)
	return done.out, nil
}

// 保存済みの結果をそのまま返す（現在の注文状態は見ない）
func (u *OrderFulfillmentUsecase) replayCancel(rec model.IdempotencyRecord, resourceID string) (CancelOrderOutput, error) {
	var out CancelOrderOutput
	if err := json.Unmarshal(rec.Result, &out); err != nil {
		return CancelOrderOutput{}, fmt.Errorf("decode stored result: %w", err)
	}
	if rec.ResourceID != resourceID {
		u.log.Warn("idempotency key reused for another order",
			zap.String("stored_order_id", rec.ResourceID), zap.String("requested_order_id", resourceID))
	}
	u.log.Info("idempotent replay", zap.String("scope", rec.Scope), zap.String("resource_id", rec.ResourceID))
	out.Replayed = true
	return out, nil
}

func toCancelOrderOutput(o model.Order) CancelOrderOutput {
	return CancelOrderOutput{
		Success: true,
		Order: CancelledOrderSummary{
			ID:          o.ID,
			OrderNumber: o.OrderNumber,
			Status:      string(o.Status),
			CancelledAt: o.CancelledAt,
		},
	}
}

type PlaceOrderItemInput struct {
	ProductID int64
	SKU       string
	Quantity  int64
	UnitPrice decimal.Decimal
}

type PlaceOrderInput struct {
	Items          []PlaceOrderItemInput
	IdempotencyKey string
}

type PlaceOrderOutput struct {
	Order    OrderOutput `json:"order"`
	Replayed bool        `json:"-"`
}

// 注文確定。注文作成と明細ごとのsale調整を1つのTxで行う。
// どれか1つでも在庫不足なら全部ロールバック。
func (u *OrderFulfillmentUsecase) PlaceOrder(ctx context.Context, actor model.AuthenticatedUser, in PlaceOrderInput) (PlaceOrderOutput, error) {
	if actor.ID <= 0 {
		return PlaceOrderOutput{}, ErrUnauthorized
	}
	if err := validatePlaceOrder(in); err != nil {
		return PlaceOrderOutput{}, err
	}
	key, err := normalizeIdempotencyKey(in.IdempotencyKey)
	if err != nil {
		return PlaceOrderOutput{}, err
	}
	if key == "" {
		key = u.idem.GenerateKey(ScopePlaceOrder)
	}
	scoped := ScopedKey(actor.ID, key)

	chk, err := u.idem.CheckAndReserve(ctx, ScopePlaceOrder, scoped)
	if err != nil {
		return PlaceOrderOutput{}, err
	}
	if chk.AlreadyCompleted {
		return u.replayPlace(chk.Record)
	}

	type placed struct {
		res TransitionResult
		out PlaceOrderOutput
		rec model.IdempotencyRecord
	}
	done, err := RunWithRetryValue(ctx, u.exec, func(ctx context.Context, r repo.TxRepos) (placed, error) {
		now := u.clock.Now()
		items := make([]model.OrderItem, 0, len(in.Items))
		total := decimal.Zero
		for _, it := range in.Items {
			items = append(items, model.OrderItem{
				ProductID: it.ProductID,
				SKU:       strings.TrimSpace(it.SKU),
				Quantity:  it.Quantity,
				UnitPrice: it.UnitPrice,
				CreatedAt: now,
			})
			total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(it.Quantity)))
		}

		created, err := r.Orders().Create(ctx, model.Order{
			OrderNumber:   newOrderNumber(),
			UserID:        actor.ID,
			Status:        model.OrderStatusPending,
			PaymentStatus: model.PaymentStatusPending,
			TotalPrice:    total,
			Items:         items,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		if err != nil {
			return placed{}, err
		}

		//商品ID順に在庫を減らす（キャンセルと同じ順序）
		sorted := slices.Clone(created.Items)
		slices.SortStableFunc(sorted, func(a, b model.OrderItem) int { return cmp.Compare(a.ProductID, b.ProductID) })

		orderID := created.ID
		adjustments := make([]AdjustResult, 0, len(sorted))
		for _, it := range sorted {
			res, err := u.ledger.Adjust(ctx, r, AdjustInput{
				ProductID:   it.ProductID,
				Delta:       -it.Quantity,
				Type:        model.InventoryLogSale,
				Reason:      "order " + created.OrderNumber,
				OrderID:     &orderID,
				PerformedBy: actor.PerformedBy(),
			})
			if err != nil {
				return placed{}, err
			}
			adjustments = append(adjustments, res)
		}

		out := PlaceOrderOutput{Order: toOrderOutput(created)}
		rec, err := u.idem.Record(ctx, r, ScopePlaceOrder, scoped, strconv.FormatInt(created.ID, 10), out)
		if err != nil {
			return placed{}, err
		}
		return placed{
			res: TransitionResult{Order: created, Changed: true, Adjustments: adjustments},
			out: out,
			rec: rec,
		}, nil
	})
	if err != nil {
		//同じキーが先にコミットされていればその結果を返す。
		//それ以外の一意制約違反（注文番号など）は冪等キーの衝突ではない
		if errors.Is(err, repo.ErrDuplicate) {
			if chk, lerr := u.idem.CheckAndReserve(ctx, ScopePlaceOrder, scoped); lerr == nil && chk.AlreadyCompleted {
				return u.replayPlace(chk.Record)
			}
		}
		u.logFailure("place order failed", err, zap.Int64("actor_id", actor.ID))
		return PlaceOrderOutput{}, err
	}

	u.idem.Remember(ctx, done.rec)
	u.events.order(ctx, model.OrderEventPlaced, done.res, actor, "", u.clock.Now())
	u.events.inventory(ctx, done.res.Adjustments)

	u.log.Info("order placed",
		zap.Int64("order_id", done.out.Order.ID),
		zap.Int64("actor_id", actor.ID),
		zap.String("total", done.out.Order.TotalPrice.String()),
	)
	return done.out, nil
}

func (u *OrderFulfillmentUsecase) replayPlace(rec model.IdempotencyRecord) (PlaceOrderOutput, error) {
	var out PlaceOrderOutput
	if err := json.Unmarshal(rec.Result, &out); err != nil {
		return PlaceOrderOutput{}, fmt.Errorf("decode stored result: %w", err)
	}
	u.log.Info("idempotent replay", zap.String("scope", rec.Scope), zap.String("resource_id", rec.ResourceID))
	out.Replayed = true
	return out, nil
}

func (u *OrderFulfillmentUsecase) GetInventorySummary(ctx context.Context, productID int64) (model.InventorySummary, error) {
	return u.ledger.Summarize(ctx, productID)
}

// 業務エラーはInfo、それ以外はError
func (u *OrderFulfillmentUsecase) logFailure(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if isBusinessError(err) {
		u.log.Info(msg, fields...)
		return
	}
	u.log.Error(msg, fields...)
}

func isBusinessError(err error) bool {
	for _, target := range []error{
		ErrInvalidInput, ErrUnauthorized, ErrForbidden, ErrNotFound,
		ErrAlreadyCancelled, ErrInvalidTransition, ErrOutOfStock,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func validatePlaceOrder(in PlaceOrderInput) error {
	if len(in.Items) == 0 {
		return fmt.Errorf("%w: order has no items", ErrInvalidInput)
	}
	for i, it := range in.Items {
		if it.ProductID <= 0 {
			return fmt.Errorf("%w: items[%d]: invalid product id", ErrInvalidInput, i)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: items[%d]: quantity must be positive", ErrInvalidInput, i)
		}
		if strings.TrimSpace(it.SKU) == "" {
			return fmt.Errorf("%w: items[%d]: sku is required", ErrInvalidInput, i)
		}
		if it.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: items[%d]: negative price", ErrInvalidInput, i)
		}
	}
	return nil
}

func newOrderNumber() string {
	return "ORD-" + ulid.Make().String()
}
