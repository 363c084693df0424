package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/shopspring/decimal"
)

// 注文履歴の参照（本人の注文のみ）
type OrderUsecase struct {
	orders repo.OrderRepository
}

func NewOrderUsecase(orders repo.OrderRepository) *OrderUsecase {
	return &OrderUsecase{orders: orders}
}

type OrderItemOutput struct {
	ProductID int64           `json:"product_id"`
	SKU       string          `json:"sku"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int64           `json:"quantity"`
}

type OrderOutput struct {
	ID              int64             `json:"id"`
	OrderNumber     string            `json:"order_number"`
	UserID          int64             `json:"user_id"`
	Status          string            `json:"status"`
	PaymentStatus   string            `json:"payment_status"`
	TotalPrice      decimal.Decimal   `json:"total_price"`
	CancelledAt     *time.Time        `json:"cancelled_at,omitempty"`
	CancelledReason *string           `json:"cancelled_reason,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	Items           []OrderItemOutput `json:"items"`
}

type OrderListOutput struct {
	Items []OrderOutput `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, actor model.AuthenticatedUser, page, limit int) (OrderListOutput, error) {
	if actor.ID <= 0 {
		return OrderListOutput{}, ErrUnauthorized
	}
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = 20
	}
	if page < 1 {
		return OrderListOutput{}, fmt.Errorf("%w: invalid page", ErrInvalidInput)
	}
	if limit < 1 || limit > 100 {
		return OrderListOutput{}, fmt.Errorf("%w: invalid limit", ErrInvalidInput)
	}

	orders, total, err := u.orders.ListByUserID(ctx, actor.ID, page, limit)
	if err != nil {
		return OrderListOutput{}, err
	}

	outs := make([]OrderOutput, 0, len(orders))
	for _, o := range orders {
		outs = append(outs, toOrderOutput(o))
	}
	return OrderListOutput{Items: outs, Total: total, Page: page, Limit: limit}, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, actor model.AuthenticatedUser, orderID int64) (OrderOutput, error) {
	if actor.ID <= 0 {
		return OrderOutput{}, ErrUnauthorized
	}
	if orderID <= 0 {
		return OrderOutput{}, fmt.Errorf("%w: invalid order id", ErrInvalidInput)
	}

	o, err := u.orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return OrderOutput{}, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
	}
	if err != nil {
		return OrderOutput{}, err
	}
	//他人の注文は「存在しない扱い」にする
	if !o.IsOwnedBy(actor.ID) {
		return OrderOutput{}, fmt.Errorf("%w: order %d", ErrNotFound, orderID)
	}
	return toOrderOutput(o), nil
}

func toOrderOutput(o model.Order) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(o.Items))
	for _, it := range o.Items {
		outItems = append(outItems, OrderItemOutput{
			ProductID: it.ProductID,
			SKU:       it.SKU,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		})
	}

	return OrderOutput{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		UserID:          o.UserID,
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		TotalPrice:      o.TotalPrice,
		CancelledAt:     o.CancelledAt,
		CancelledReason: o.CancelledReason,
		CreatedAt:       o.CreatedAt,
		Items:           outItems,
	}
}
