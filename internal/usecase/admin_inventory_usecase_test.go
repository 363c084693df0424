package usecase_test

import (
	"context"
	"testing"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminInventoryUsecase_CreateRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.adminInventory.CreateRecord(ctx, admin, usecase.AdminCreateInventoryInput{
		ProductID:         7,
		InitialQuantity:   12,
		LowStockThreshold: 2,
		TrackQuantity:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(12), s.Quantity)
	assert.False(t, s.IsLowStock)

	logs := f.store.Logs(7)
	require.Len(t, logs, 1)
	assert.Equal(t, model.InventoryLogRestock, logs[0].Type)
	assert.Equal(t, int64(0), logs[0].PreviousQuantity)
	assert.Equal(t, "initial stock", logs[0].Reason)

	_, err = f.adminInventory.CreateRecord(ctx, admin, usecase.AdminCreateInventoryInput{ProductID: 7})
	assert.ErrorIs(t, err, usecase.ErrInvalidInput)

	_, err = f.adminInventory.CreateRecord(ctx, admin, usecase.AdminCreateInventoryInput{ProductID: 8, InitialQuantity: -1})
	assert.ErrorIs(t, err, usecase.ErrInvalidInput)

	_, err = f.adminInventory.CreateRecord(ctx, owner, usecase.AdminCreateInventoryInput{ProductID: 9})
	assert.ErrorIs(t, err, usecase.ErrForbidden)
}

func TestAdminInventoryUsecase_CreateRecordWithoutStock(t *testing.T) {
	f := newFixture(t)

	s, err := f.adminInventory.CreateRecord(context.Background(), admin, usecase.AdminCreateInventoryInput{ProductID: 3, TrackQuantity: true})
	require.NoError(t, err)
	assert.Equal(t, int64(0), s.Quantity)
	assert.True(t, s.IsOutOfStock)
	assert.Empty(t, f.store.Logs(3))
}

func TestAdminInventoryUsecase_Adjust(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedProduct(1, 5)

	out, err := f.adminInventory.Adjust(ctx, admin, 1, usecase.AdminAdjustInventoryInput{Delta: -3, Type: "adjustment", Reason: "stocktake"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), out.PreviousQuantity)
	assert.Equal(t, int64(2), out.NewQuantity)
	assert.Equal(t, "1", out.Entry.PerformedBy)
	assert.Equal(t, int64(2), out.Summary.AvailableQuantity)

	audits := f.store.AuditLogs()
	require.Len(t, audits, 1)
	assert.Equal(t, model.AuditActionAdjustStock, audits[0].Action)
	assert.Equal(t, model.AuditResourceInventory, audits[0].ResourceType)
	assert.JSONEq(t, `{"quantity":5}`, audits[0].BeforeJSON)
	assert.JSONEq(t, `{"quantity":2}`, audits[0].AfterJSON)

	require.Len(t, f.pub.inventoryEvents(), 1)
	assert.Equal(t, model.InventoryEventAdjusted, f.pub.inventoryEvents()[0].Type)
}

func TestAdminInventoryUsecase_AdjustRejects(t *testing.T) {
	tests := []struct {
		name    string
		in      usecase.AdminAdjustInventoryInput
		wantErr error
	}{
		{name: "sale is order-only", in: usecase.AdminAdjustInventoryInput{Delta: -1, Type: "sale", Reason: "x"}, wantErr: usecase.ErrInvalidInput},
		{name: "cancellation is order-only", in: usecase.AdminAdjustInventoryInput{Delta: 1, Type: "cancellation", Reason: "x"}, wantErr: usecase.ErrInvalidInput},
		{name: "unknown type", in: usecase.AdminAdjustInventoryInput{Delta: 1, Type: "gift", Reason: "x"}, wantErr: usecase.ErrInvalidInput},
		{name: "missing reason", in: usecase.AdminAdjustInventoryInput{Delta: 1, Type: "restock"}, wantErr: usecase.ErrInvalidInput},
		{name: "negative restock", in: usecase.AdminAdjustInventoryInput{Delta: -1, Type: "restock", Reason: "x"}, wantErr: usecase.ErrInvalidInput},
		{name: "below zero", in: usecase.AdminAdjustInventoryInput{Delta: -6, Type: "adjustment", Reason: "x"}, wantErr: usecase.ErrOutOfStock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.seedProduct(1, 5)

			_, err := f.adminInventory.Adjust(context.Background(), admin, 1, tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, int64(5), f.store.Inventory(1).Quantity)
			assert.Empty(t, f.store.AuditLogs())
		})
	}
}

func TestAdminInventoryUsecase_ListLogNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedProduct(1, 0)
	for i := 0; i < 3; i++ {
		_, err := f.adminInventory.Adjust(ctx, admin, 1, usecase.AdminAdjustInventoryInput{Delta: int64(i + 1), Type: "restock", Reason: "delivery"})
		require.NoError(t, err)
	}

	logs, err := f.adminInventory.ListLog(ctx, admin, 1, 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, int64(3), logs[0].QuantityDelta)
	assert.Equal(t, int64(2), logs[1].QuantityDelta)

	_, err = f.adminInventory.ListLog(ctx, admin, 1, 500)
	assert.ErrorIs(t, err, usecase.ErrInvalidInput)
	_, err = f.adminInventory.ListLog(ctx, stranger, 1, 10)
	assert.ErrorIs(t, err, usecase.ErrForbidden)
}

func TestAdminInventoryUsecase_Reconcile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.adminInventory.CreateRecord(ctx, admin, usecase.AdminCreateInventoryInput{ProductID: 1, InitialQuantity: 4, TrackQuantity: true})
	require.NoError(t, err)
	o := f.seedOrder(owner.ID, model.OrderStatusPending, model.PaymentStatusPending, line{productID: 1, qty: 2})
	_, err = f.fulfillment.CancelOrder(ctx, owner, o.ID, usecase.CancelOrderInput{})
	require.NoError(t, err)

	out, err := f.adminInventory.Reconcile(ctx, admin, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(6), out.Quantity)
	assert.Equal(t, int64(6), out.LoggedTotal)
	assert.True(t, out.Consistent)

	//台帳を通さない変更は検知される
	f.seedProduct(2, 9)
	out, err = f.adminInventory.Reconcile(ctx, admin, 2)
	require.NoError(t, err)
	assert.False(t, out.Consistent)
}

func TestAdminAuditUsecase_List(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedProduct(1, 5)
	o := f.seedOrder(owner.ID, model.OrderStatusPending, model.PaymentStatusPending)

	_, err := f.adminInventory.Adjust(ctx, admin, 1, usecase.AdminAdjustInventoryInput{Delta: 1, Type: "return", Reason: "customer return"})
	require.NoError(t, err)
	_, err = f.adminOrders.UpdateStatus(ctx, admin, o.ID, usecase.AdminUpdateOrderStatusInput{Status: "confirmed"})
	require.NoError(t, err)

	all, err := f.adminAudit.List(ctx, admin, repo.AuditLogFilter{})
	require.NoError(t, err)
	require.Len(t, all.Items, 2)
	assert.Equal(t, int64(2), all.Total)
	assert.Equal(t, 50, all.Limit)
	assert.Equal(t, model.AuditActionUpdateOrderStatus, all.Items[0].Action)

	rt := model.AuditResourceInventory
	inv, err := f.adminAudit.List(ctx, admin, repo.AuditLogFilter{ResourceType: &rt})
	require.NoError(t, err)
	require.Len(t, inv.Items, 1)
	assert.Equal(t, int64(1), inv.Items[0].ResourceID)

	page, err := f.adminAudit.List(ctx, admin, repo.AuditLogFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, model.AuditActionAdjustStock, page.Items[0].Action)

	_, err = f.adminAudit.List(ctx, owner, repo.AuditLogFilter{})
	assert.ErrorIs(t, err, usecase.ErrForbidden)

	from, to := testNow, testNow.Add(-1)
	_, err = f.adminAudit.List(ctx, admin, repo.AuditLogFilter{CreatedFrom: &from, CreatedTo: &to})
	assert.ErrorIs(t, err, usecase.ErrInvalidInput)
}
