package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
	"storefront/internal/testutil"
	"storefront/internal/usecase"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	owner    = model.AuthenticatedUser{ID: 10, Role: model.RoleUser}
	stranger = model.AuthenticatedUser{ID: 11, Role: model.RoleUser}
	admin    = model.AuthenticatedUser{ID: 1, Role: model.RoleAdmin}
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// 送ったイベントを覚えておく
type recordingPublisher struct {
	mu        sync.Mutex
	orders    []model.OrderEvent
	inventory []model.InventoryEvent
	err       error
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, ev model.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders = append(p.orders, ev)
	return p.err
}

func (p *recordingPublisher) PublishInventoryEvent(_ context.Context, ev model.InventoryEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inventory = append(p.inventory, ev)
	return p.err
}

func (p *recordingPublisher) orderEvents() []model.OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.OrderEvent(nil), p.orders...)
}

func (p *recordingPublisher) inventoryEvents() []model.InventoryEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.InventoryEvent(nil), p.inventory...)
}

type fixture struct {
	store *testutil.MemStore
	pub   *recordingPublisher

	exec           *usecase.TxExecutor
	ledger         *usecase.InventoryLedger
	idem           *usecase.IdempotencyStore
	machine        *usecase.OrderStateMachine
	fulfillment    *usecase.OrderFulfillmentUsecase
	orders         *usecase.OrderUsecase
	adminOrders    *usecase.AdminOrderUsecase
	adminInventory *usecase.AdminInventoryUsecase
	adminAudit     *usecase.AdminAuditUsecase
}

func testExecutorOptions() usecase.TxExecutorOptions {
	return usecase.TxExecutorOptions{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Timeout:        5 * time.Second,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, testExecutorOptions(), nil)
}

func newFixtureWith(t *testing.T, opts usecase.TxExecutorOptions, cache usecase.ReplayCache) *fixture {
	t.Helper()

	store := testutil.NewMemStore()
	readers := store.Repos()
	clock := fixedClock{now: testNow}
	log := zap.NewNop()
	pub := &recordingPublisher{}

	exec := usecase.NewTxExecutor(store, opts, log)
	ledger := usecase.NewInventoryLedger(readers.Inventory(), clock)
	idem := usecase.NewIdempotencyStore(readers.Idempotency(), cache, clock, log)
	machine := usecase.NewOrderStateMachine(ledger, clock)

	return &fixture{
		store:          store,
		pub:            pub,
		exec:           exec,
		ledger:         ledger,
		idem:           idem,
		machine:        machine,
		fulfillment:    usecase.NewOrderFulfillmentUsecase(exec, idem, machine, ledger, pub, clock, log),
		orders:         usecase.NewOrderUsecase(readers.Orders()),
		adminOrders:    usecase.NewAdminOrderUsecase(exec, machine, readers.Orders(), pub, clock, log),
		adminInventory: usecase.NewAdminInventoryUsecase(exec, ledger, readers.InventoryLogs(), pub, clock, log),
		adminAudit:     usecase.NewAdminAuditUsecase(readers.AuditLogs()),
	}
}

func (f *fixture) seedProduct(productID, qty int64) {
	f.store.SeedInventory(model.InventoryRecord{
		ProductID:         productID,
		Quantity:          qty,
		LowStockThreshold: 1,
		TrackQuantity:     true,
		UpdatedAt:         testNow,
	})
}

type line struct {
	productID int64
	qty       int64
}

func (f *fixture) seedOrder(userID int64, status model.OrderStatus, payment model.PaymentStatus, items ...line) model.Order {
	o := model.Order{
		OrderNumber:   fmt.Sprintf("ORD-TEST-%d-%d", userID, len(items)),
		UserID:        userID,
		Status:        status,
		PaymentStatus: payment,
		TotalPrice:    decimal.Zero,
		CreatedAt:     testNow,
		UpdatedAt:     testNow,
	}
	for _, it := range items {
		price := decimal.RequireFromString("1200.00")
		o.Items = append(o.Items, model.OrderItem{
			ProductID: it.productID,
			SKU:       fmt.Sprintf("RING-%d", it.productID),
			Quantity:  it.qty,
			UnitPrice: price,
			CreatedAt: testNow,
		})
		o.TotalPrice = o.TotalPrice.Add(price.Mul(decimal.NewFromInt(it.qty)))
	}
	return f.store.SeedOrder(o)
}

// ledger.Adjustを単独Txで流す
func (f *fixture) adjust(t *testing.T, in usecase.AdjustInput) (usecase.AdjustResult, error) {
	t.Helper()
	var res usecase.AdjustResult
	err := f.store.WithinTx(context.Background(), func(r repo.TxRepos) error {
		var err error
		res, err = f.ledger.Adjust(context.Background(), r, in)
		return err
	})
	return res, err
}

func sumDeltas(logs []model.InventoryLogEntry) int64 {
	var s int64
	for _, l := range logs {
		s += l.QuantityDelta
	}
	return s
}

func transientErr() error {
	return fmt.Errorf("%w: simulated serialization failure", repo.ErrTransient)
}
