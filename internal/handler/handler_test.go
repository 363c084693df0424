package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/handler"
	"storefront/internal/server"
	"storefront/internal/testutil"
	"storefront/internal/usecase"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "handler-test-secret"

type ErrorResponse struct {
	Error string `json:"error"`
}

type testApp struct {
	e     *echo.Echo
	store *testutil.MemStore
}

type failingPinger struct{ err error }

func (p failingPinger) PingContext(context.Context) error { return p.err }

func newTestApp(t *testing.T, pinger handler.Pinger) *testApp {
	t.Helper()

	store := testutil.NewMemStore()
	readers := store.Repos()
	log := zap.NewNop()
	clock := usecase.SystemClock()
	pub := usecase.NoopPublisher{}

	exec := usecase.NewTxExecutor(store, usecase.TxExecutorOptions{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Timeout:        5 * time.Second,
	}, log)
	ledger := usecase.NewInventoryLedger(readers.Inventory(), clock)
	idem := usecase.NewIdempotencyStore(readers.Idempotency(), nil, clock, log)
	machine := usecase.NewOrderStateMachine(ledger, clock)
	fulfillment := usecase.NewOrderFulfillmentUsecase(exec, idem, machine, ledger, pub, clock, log)

	cfg := config.Config{JWTSecret: testSecret}
	e := server.New(cfg, server.Handlers{
		Health:         handler.NewHealthHandler(pinger),
		Orders:         handler.NewOrderHandler(fulfillment, usecase.NewOrderUsecase(readers.Orders())),
		Inventory:      handler.NewInventoryHandler(fulfillment),
		AdminOrders:    handler.NewAdminOrderHandler(usecase.NewAdminOrderUsecase(exec, machine, readers.Orders(), pub, clock, log)),
		AdminInventory: handler.NewAdminInventoryHandler(usecase.NewAdminInventoryUsecase(exec, ledger, readers.InventoryLogs(), pub, clock, log)),
		AdminAudit:     handler.NewAdminAuditHandler(usecase.NewAdminAuditUsecase(readers.AuditLogs())),
	}, log)

	return &testApp{e: e, store: store}
}

func token(t *testing.T, userID int64, role model.Role) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"role": string(role),
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

type call struct {
	method  string
	path    string
	body    any
	token   string
	headers map[string]string
}

func (a *testApp) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if c.body != nil {
		b, err := json.Marshal(c.body)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	if c.body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func (a *testApp) seedProduct(productID, qty int64) {
	a.store.SeedInventory(model.InventoryRecord{ProductID: productID, Quantity: qty, LowStockThreshold: 1, TrackQuantity: true})
}

func (a *testApp) seedOrder(userID int64, status model.OrderStatus, productID, qty int64) model.Order {
	return a.store.SeedOrder(model.Order{
		OrderNumber:   "ORD-HANDLER-" + strconv.FormatInt(userID, 10),
		UserID:        userID,
		Status:        status,
		PaymentStatus: model.PaymentStatusPending,
		TotalPrice:    decimal.NewFromInt(1200 * qty),
		Items: []model.OrderItem{{
			ProductID: productID,
			SKU:       "RING-" + strconv.FormatInt(productID, 10),
			Quantity:  qty,
			UnitPrice: decimal.NewFromInt(1200),
		}},
	})
}

var errDBDown = errors.New("db down")
