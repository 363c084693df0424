package handler_test

import (
	"net/http"
	"strconv"
	"testing"

	"storefront/internal/domain/model"
	"storefront/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminRoutes_RequireAdmin(t *testing.T) {
	app := newTestApp(t, nil)
	user := token(t, 10, model.RoleUser)

	for _, c := range []call{
		{method: http.MethodGet, path: "/admin/orders"},
		{method: http.MethodPut, path: "/admin/orders/1/status", body: map[string]string{"status": "confirmed"}},
		{method: http.MethodPost, path: "/admin/inventory", body: map[string]any{"product_id": 1}},
		{method: http.MethodGet, path: "/admin/audit-logs"},
	} {
		rec := app.do(t, c)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, c.path)

		c.token = user
		rec = app.do(t, c)
		assert.Equal(t, http.StatusForbidden, rec.Code, c.path)
	}
}

func TestAdminOrderStatus_HTTP(t *testing.T) {
	app := newTestApp(t, nil)
	app.seedProduct(1, 0)
	o := app.seedOrder(10, model.OrderStatusShipped, 1, 2)
	admin := token(t, 1, model.RoleAdmin)
	path := "/admin/orders/" + strconv.FormatInt(o.ID, 10)

	rec := app.do(t, call{method: http.MethodPut, path: path + "/status", body: map[string]string{"status": "cancelled", "reason": "lost"}, token: admin})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "cancelled", decode[usecase.OrderOutput](t, rec).Status)
	assert.Equal(t, int64(2), app.store.Inventory(1).Quantity)

	rec = app.do(t, call{method: http.MethodPut, path: path + "/status", body: map[string]string{"status": "shipped"}, token: admin})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(t, call{method: http.MethodPut, path: path + "/payment-status", body: map[string]string{"payment_status": "nope"}, token: admin})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, call{method: http.MethodGet, path: "/admin/orders?status=cancelled", token: admin})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), decode[usecase.OrderListOutput](t, rec).Total)

	rec = app.do(t, call{method: http.MethodGet, path: "/admin/orders?from=yesterday", token: admin})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, call{method: http.MethodGet, path: "/admin/audit-logs?resource_type=order", token: admin})
	require.Equal(t, http.StatusOK, rec.Code)
	audits := decode[usecase.AuditLogListOutput](t, rec)
	require.Len(t, audits.Items, 1)
	assert.Equal(t, int64(1), audits.Total)
	assert.Equal(t, model.AuditActionUpdateOrderStatus, audits.Items[0].Action)
}

func TestAdminInventory_HTTP(t *testing.T) {
	app := newTestApp(t, nil)
	admin := token(t, 1, model.RoleAdmin)

	rec := app.do(t, call{method: http.MethodPost, path: "/admin/inventory", body: map[string]any{"product_id": 5, "initial_quantity": 10, "low_stock_threshold": 2}, token: admin})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[model.InventorySummary](t, rec)
	assert.Equal(t, int64(10), created.Quantity)
	assert.True(t, created.TrackQuantity)

	rec = app.do(t, call{method: http.MethodPost, path: "/admin/inventory/5/adjustments", body: map[string]any{"delta": -4, "type": "adjustment", "reason": "stocktake"}, token: admin})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	adj := decode[usecase.AdjustmentOutput](t, rec)
	assert.Equal(t, int64(6), adj.NewQuantity)

	rec = app.do(t, call{method: http.MethodPost, path: "/admin/inventory/5/adjustments", body: map[string]any{"delta": -1, "type": "sale", "reason": "x"}, token: admin})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, call{method: http.MethodGet, path: "/admin/inventory/5/logs?limit=10", token: admin})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.InventoryLogEntry](t, rec), 2)

	rec = app.do(t, call{method: http.MethodGet, path: "/admin/inventory/5/reconcile", token: admin})
	require.Equal(t, http.StatusOK, rec.Code)
	rc := decode[usecase.ReconcileOutput](t, rec)
	assert.True(t, rc.Consistent)
	assert.Equal(t, int64(6), rc.LoggedTotal)
}
