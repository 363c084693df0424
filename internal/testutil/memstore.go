package testutil

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/hashicorp/go-memdb"
)

const (
	tblOrders      = "orders"
	tblInventory   = "inventory"
	tblLogs        = "inventory_logs"
	tblIdempotency = "idempotency"
	tblAudit       = "audit_logs"
)

func schema() *memdb.DBSchema {
	id := func(field string) *memdb.IndexSchema {
		return &memdb.IndexSchema{Name: "id", Unique: true, Indexer: &memdb.IntFieldIndex{Field: field}}
	}
	return &memdb.DBSchema{Tables: map[string]*memdb.TableSchema{
		tblOrders: {Name: tblOrders, Indexes: map[string]*memdb.IndexSchema{
			"id":   id("ID"),
			"user": {Name: "user", Indexer: &memdb.IntFieldIndex{Field: "UserID"}},
		}},
		tblInventory: {Name: tblInventory, Indexes: map[string]*memdb.IndexSchema{
			"id": id("ProductID"),
		}},
		tblLogs: {Name: tblLogs, Indexes: map[string]*memdb.IndexSchema{
			"id":      id("ID"),
			"product": {Name: "product", Indexer: &memdb.IntFieldIndex{Field: "ProductID"}},
		}},
		tblIdempotency: {Name: tblIdempotency, Indexes: map[string]*memdb.IndexSchema{
			"id": {Name: "id", Unique: true, Indexer: &memdb.CompoundIndex{Indexes: []memdb.Indexer{
				&memdb.StringFieldIndex{Field: "Scope"},
				&memdb.StringFieldIndex{Field: "Key"},
			}}},
		}},
		tblAudit: {Name: tblAudit, Indexes: map[string]*memdb.IndexSchema{
			"id": id("ID"),
		}},
	}}
}

// go-memdbで作ったメモリ上のストア。repository.TransactionManager として使う。
// 書き込みTxは1本ずつ直列に走り、fnがエラーを返せば何も残らない。
type MemStore struct {
	db *memdb.MemDB

	orderSeq atomic.Int64
	itemSeq  atomic.Int64
	logSeq   atomic.Int64
	idemSeq  atomic.Int64
	auditSeq atomic.Int64

	attempts atomic.Int64
	commits  atomic.Int64

	failMu   sync.Mutex
	failures []error
}

func NewMemStore() *MemStore {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		panic(fmt.Sprintf("memdb schema: %v", err))
	}
	return &MemStore{db: db}
}

func (m *MemStore) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.attempts.Add(1)

	txn := m.db.Txn(true)
	defer txn.Abort()

	if err := fn(&memRepos{store: m, txn: txn}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	//コミット時の失敗を差し込む
	if err := m.nextFailure(); err != nil {
		return err
	}
	txn.Commit()
	m.commits.Add(1)
	return nil
}

// 次のn回のコミットをerrで失敗させる（ロールバックされる）
func (m *MemStore) FailNext(n int, err error) {
	m.failMu.Lock()
	defer m.failMu.Unlock()
	for i := 0; i < n; i++ {
		m.failures = append(m.failures, err)
	}
}

func (m *MemStore) nextFailure() error {
	m.failMu.Lock()
	defer m.failMu.Unlock()
	if len(m.failures) == 0 {
		return nil
	}
	err := m.failures[0]
	m.failures = m.failures[1:]
	return err
}

// WithinTxが呼ばれた回数
func (m *MemStore) Attempts() int64 { return m.attempts.Load() }
func (m *MemStore) Commits() int64  { return m.commits.Load() }

// Tx外の読み書き（1操作ごとに即コミット）
func (m *MemStore) Repos() repo.TxRepos {
	return &memRepos{store: m}
}

func (m *MemStore) SeedInventory(rec model.InventoryRecord) {
	if err := m.Repos().Inventory().Create(context.Background(), rec); err != nil {
		panic(err)
	}
}

func (m *MemStore) SeedOrder(o model.Order) model.Order {
	created, err := m.Repos().Orders().Create(context.Background(), o)
	if err != nil {
		panic(err)
	}
	return created
}

func (m *MemStore) Inventory(productID int64) model.InventoryRecord {
	rec, err := m.Repos().Inventory().FindByProductID(context.Background(), productID)
	if err != nil {
		panic(err)
	}
	return rec
}

func (m *MemStore) Order(orderID int64) model.Order {
	o, err := m.Repos().Orders().FindByID(context.Background(), orderID)
	if err != nil {
		panic(err)
	}
	return o
}

// 古い順
func (m *MemStore) Logs(productID int64) []model.InventoryLogEntry {
	txn := m.db.Txn(false)
	defer txn.Abort()
	logs := collect[model.InventoryLogEntry](txn, tblLogs, "product", productID)
	slices.SortFunc(logs, func(a, b model.InventoryLogEntry) int { return cmp.Compare(a.ID, b.ID) })
	return logs
}

func (m *MemStore) IdempotencyRecords() []model.IdempotencyRecord {
	txn := m.db.Txn(false)
	defer txn.Abort()
	return collect[model.IdempotencyRecord](txn, tblIdempotency, "id")
}

func (m *MemStore) AuditLogs() []model.AuditLog {
	txn := m.db.Txn(false)
	defer txn.Abort()
	logs := collect[model.AuditLog](txn, tblAudit, "id")
	slices.SortFunc(logs, func(a, b model.AuditLog) int { return cmp.Compare(a.ID, b.ID) })
	return logs
}

// 保存するのは常にコピーのポインタ。読むときもコピーを返す
func collect[T any](txn *memdb.Txn, table, index string, args ...any) []T {
	it, err := txn.Get(table, index, args...)
	if err != nil {
		panic(err)
	}
	var out []T
	for obj := it.Next(); obj != nil; obj = it.Next() {
		out = append(out, *obj.(*T))
	}
	return out
}

type memRepos struct {
	store *MemStore
	// nilならTx外
	txn *memdb.Txn
}

func (r *memRepos) Orders() repo.OrderRepository               { return memOrders{r} }
func (r *memRepos) Inventory() repo.InventoryRepository        { return memInventory{r} }
func (r *memRepos) InventoryLogs() repo.InventoryLogRepository { return memInventoryLogs{r} }
func (r *memRepos) Idempotency() repo.IdempotencyRepository    { return memIdempotency{r} }
func (r *memRepos) AuditLogs() repo.AuditLogRepository         { return memAuditLogs{r} }

func (r *memRepos) read(fn func(txn *memdb.Txn) error) error {
	if r.txn != nil {
		return fn(r.txn)
	}
	txn := r.store.db.Txn(false)
	defer txn.Abort()
	return fn(txn)
}

func (r *memRepos) write(fn func(txn *memdb.Txn) error) error {
	if r.txn != nil {
		return fn(r.txn)
	}
	txn := r.store.db.Txn(true)
	if err := fn(txn); err != nil {
		txn.Abort()
		return err
	}
	txn.Commit()
	return nil
}

func first[T any](txn *memdb.Txn, table string, args ...any) (T, error) {
	var zero T
	obj, err := txn.First(table, "id", args...)
	if err != nil {
		return zero, err
	}
	if obj == nil {
		return zero, repo.ErrNotFound
	}
	return *obj.(*T), nil
}

func cloneOrder(o model.Order) model.Order {
	o.Items = slices.Clone(o.Items)
	return o
}

type memOrders struct{ r *memRepos }

func (m memOrders) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	var o model.Order
	err := m.r.read(func(txn *memdb.Txn) error {
		var err error
		o, err = first[model.Order](txn, tblOrders, orderID)
		return err
	})
	return cloneOrder(o), err
}

func (m memOrders) LockByID(ctx context.Context, orderID int64) (model.Order, error) {
	return m.FindByID(ctx, orderID)
}

func (m memOrders) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	var all []model.Order
	_ = m.r.read(func(txn *memdb.Txn) error {
		all = collect[model.Order](txn, tblOrders, "user", userID)
		return nil
	})
	return pageOrders(all, page, limit)
}

func (m memOrders) Create(ctx context.Context, o model.Order) (model.Order, error) {
	o = cloneOrder(o)
	o.ID = m.r.store.orderSeq.Add(1)
	for i := range o.Items {
		o.Items[i].ID = m.r.store.itemSeq.Add(1)
		o.Items[i].OrderID = o.ID
	}
	err := m.r.write(func(txn *memdb.Txn) error {
		stored := cloneOrder(o)
		return txn.Insert(tblOrders, &stored)
	})
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (m memOrders) UpdateState(ctx context.Context, o model.Order) error {
	return m.r.write(func(txn *memdb.Txn) error {
		cur, err := first[model.Order](txn, tblOrders, o.ID)
		if err != nil {
			return err
		}
		//明細は変えない
		cur.Status = o.Status
		cur.PaymentStatus = o.PaymentStatus
		cur.IdempotencyKey = o.IdempotencyKey
		cur.CancelledAt = o.CancelledAt
		cur.CancelledReason = o.CancelledReason
		cur.UpdatedAt = o.UpdatedAt
		stored := cloneOrder(cur)
		return txn.Insert(tblOrders, &stored)
	})
}

func (m memOrders) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	var all []model.Order
	_ = m.r.read(func(txn *memdb.Txn) error {
		all = collect[model.Order](txn, tblOrders, "id")
		return nil
	})
	filtered := all[:0]
	for _, o := range all {
		if f.Status != "" && string(o.Status) != f.Status {
			continue
		}
		if f.PaymentStatus != "" && string(o.PaymentStatus) != f.PaymentStatus {
			continue
		}
		if f.UserID != nil && o.UserID != *f.UserID {
			continue
		}
		if f.From != nil && o.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && o.CreatedAt.After(*f.To) {
			continue
		}
		filtered = append(filtered, o)
	}
	return pageOrders(filtered, f.Page, f.Limit)
}

// id降順でページング
func pageOrders(all []model.Order, page, limit int) ([]model.Order, int64, error) {
	slices.SortFunc(all, func(a, b model.Order) int { return cmp.Compare(b.ID, a.ID) })
	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return []model.Order{}, total, nil
	}
	end := min(start+limit, len(all))
	out := make([]model.Order, 0, end-start)
	for _, o := range all[start:end] {
		out = append(out, cloneOrder(o))
	}
	return out, total, nil
}

type memInventory struct{ r *memRepos }

func (m memInventory) FindByProductID(ctx context.Context, productID int64) (model.InventoryRecord, error) {
	var rec model.InventoryRecord
	err := m.r.read(func(txn *memdb.Txn) error {
		var err error
		rec, err = first[model.InventoryRecord](txn, tblInventory, productID)
		return err
	})
	return rec, err
}

func (m memInventory) LockByProductID(ctx context.Context, productID int64) (model.InventoryRecord, error) {
	return m.FindByProductID(ctx, productID)
}

func (m memInventory) ApplyDelta(ctx context.Context, entry model.InventoryLogEntry) (model.InventoryLogEntry, error) {
	err := m.r.write(func(txn *memdb.Txn) error {
		rec, err := first[model.InventoryRecord](txn, tblInventory, entry.ProductID)
		if err != nil {
			return err
		}
		if rec.Quantity != entry.PreviousQuantity {
			return fmt.Errorf("%w: quantity of product %d changed since read", repo.ErrTransient, entry.ProductID)
		}
		rec.Quantity = entry.NewQuantity
		rec.UpdatedAt = entry.CreatedAt
		if err := txn.Insert(tblInventory, &rec); err != nil {
			return err
		}
		entry.ID = m.r.store.logSeq.Add(1)
		stored := entry
		return txn.Insert(tblLogs, &stored)
	})
	if err != nil {
		return model.InventoryLogEntry{}, err
	}
	return entry, nil
}

func (m memInventory) Create(ctx context.Context, rec model.InventoryRecord) error {
	return m.r.write(func(txn *memdb.Txn) error {
		if _, err := first[model.InventoryRecord](txn, tblInventory, rec.ProductID); err == nil {
			return fmt.Errorf("%w: inventory %d", repo.ErrDuplicate, rec.ProductID)
		}
		stored := rec
		return txn.Insert(tblInventory, &stored)
	})
}

type memInventoryLogs struct{ r *memRepos }

func (m memInventoryLogs) ListByProductID(ctx context.Context, productID int64, limit int) ([]model.InventoryLogEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var logs []model.InventoryLogEntry
	_ = m.r.read(func(txn *memdb.Txn) error {
		logs = collect[model.InventoryLogEntry](txn, tblLogs, "product", productID)
		return nil
	})
	slices.SortFunc(logs, func(a, b model.InventoryLogEntry) int { return cmp.Compare(b.ID, a.ID) })
	if len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (m memInventoryLogs) SumDeltas(ctx context.Context, productID int64) (int64, error) {
	var sum int64
	_ = m.r.read(func(txn *memdb.Txn) error {
		for _, l := range collect[model.InventoryLogEntry](txn, tblLogs, "product", productID) {
			sum += l.QuantityDelta
		}
		return nil
	})
	return sum, nil
}

type memIdempotency struct{ r *memRepos }

func (m memIdempotency) Find(ctx context.Context, scope, key string) (model.IdempotencyRecord, error) {
	var rec model.IdempotencyRecord
	err := m.r.read(func(txn *memdb.Txn) error {
		var err error
		rec, err = first[model.IdempotencyRecord](txn, tblIdempotency, scope, key)
		return err
	})
	return rec, err
}

// (scope, key) のユニーク制約
func (m memIdempotency) Create(ctx context.Context, rec model.IdempotencyRecord) error {
	return m.r.write(func(txn *memdb.Txn) error {
		if _, err := first[model.IdempotencyRecord](txn, tblIdempotency, rec.Scope, rec.Key); err == nil {
			return fmt.Errorf("%w: idempotency %s/%s", repo.ErrDuplicate, rec.Scope, rec.Key)
		}
		rec.ID = m.r.store.idemSeq.Add(1)
		stored := rec
		stored.Result = slices.Clone(rec.Result)
		return txn.Insert(tblIdempotency, &stored)
	})
}

type memAuditLogs struct{ r *memRepos }

func (m memAuditLogs) Create(ctx context.Context, log model.AuditLog) error {
	return m.r.write(func(txn *memdb.Txn) error {
		log.ID = m.r.store.auditSeq.Add(1)
		stored := log
		return txn.Insert(tblAudit, &stored)
	})
}

func (m memAuditLogs) List(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, int64, error) {
	var all []model.AuditLog
	_ = m.r.read(func(txn *memdb.Txn) error {
		all = collect[model.AuditLog](txn, tblAudit, "id")
		return nil
	})
	out := all[:0]
	for _, l := range all {
		if f.ActorUserID != nil && l.ActorUserID != *f.ActorUserID {
			continue
		}
		if f.Action != nil && l.Action != *f.Action {
			continue
		}
		if f.ResourceType != nil && l.ResourceType != *f.ResourceType {
			continue
		}
		if f.ResourceID != nil && l.ResourceID != *f.ResourceID {
			continue
		}
		if f.CreatedFrom != nil && l.CreatedAt.Before(*f.CreatedFrom) {
			continue
		}
		if f.CreatedTo != nil && l.CreatedAt.After(*f.CreatedTo) {
			continue
		}
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b model.AuditLog) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	start := min(max(f.Offset, 0), len(out))
	end := min(start+limit, len(out))
	return out[start:end], int64(len(out)), nil
}
