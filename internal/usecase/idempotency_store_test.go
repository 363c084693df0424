package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
	"storefront/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type replayCacheMock struct{ mock.Mock }

func (m *replayCacheMock) Get(ctx context.Context, scope, key string) (model.IdempotencyRecord, bool, error) {
	args := m.Called(ctx, scope, key)
	rec, _ := args.Get(0).(model.IdempotencyRecord)
	return rec, args.Bool(1), args.Error(2)
}

func (m *replayCacheMock) Set(ctx context.Context, rec model.IdempotencyRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func TestIdempotencyStore_GenerateKeyIsUnique(t *testing.T) {
	f := newFixture(t)

	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		k := f.idem.GenerateKey(usecase.ScopeCancelOrder)
		assert.True(t, strings.HasPrefix(k, "cancel-order_"))
		_, dup := seen[k]
		require.False(t, dup, "duplicate key %s", k)
		seen[k] = struct{}{}
	}
}

func TestIdempotencyStore_CheckThenRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	chk, err := f.idem.CheckAndReserve(ctx, "cancel-order", "u1:k1")
	require.NoError(t, err)
	assert.False(t, chk.AlreadyCompleted)

	//チェックでは何も書かない
	assert.Empty(t, f.store.IdempotencyRecords())

	err = f.store.WithinTx(ctx, func(r repo.TxRepos) error {
		_, err := f.idem.Record(ctx, r, "cancel-order", "u1:k1", "7", map[string]any{"success": true})
		return err
	})
	require.NoError(t, err)

	chk, err = f.idem.CheckAndReserve(ctx, "cancel-order", "u1:k1")
	require.NoError(t, err)
	assert.True(t, chk.AlreadyCompleted)
	assert.Equal(t, "7", chk.Record.ResourceID)
	assert.JSONEq(t, `{"success":true}`, string(chk.Record.Result))
}

func TestIdempotencyStore_RecordIsUniquePerScopeAndKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record := func(scope, key string) error {
		return f.store.WithinTx(ctx, func(r repo.TxRepos) error {
			_, err := f.idem.Record(ctx, r, scope, key, "1", "ok")
			return err
		})
	}

	require.NoError(t, record("cancel-order", "u1:k"))
	assert.ErrorIs(t, record("cancel-order", "u1:k"), repo.ErrDuplicate)
	//スコープが違えば別物
	assert.NoError(t, record("place-order", "u1:k"))
	assert.Len(t, f.store.IdempotencyRecords(), 2)
}

func TestIdempotencyStore_RecordRolledBackWithTx(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.store.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := f.idem.Record(ctx, r, "cancel-order", "u1:k", "1", "ok"); err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.Error(t, err)

	chk, err := f.idem.CheckAndReserve(ctx, "cancel-order", "u1:k")
	require.NoError(t, err)
	assert.False(t, chk.AlreadyCompleted)
}

func TestIdempotencyStore_CacheHitSkipsDatabase(t *testing.T) {
	cache := &replayCacheMock{}
	f := newFixtureWith(t, testExecutorOptions(), cache)

	stored := model.IdempotencyRecord{Scope: "cancel-order", Key: "u1:k", ResourceID: "3", Result: []byte(`{}`)}
	cache.On("Get", mock.Anything, "cancel-order", "u1:k").Return(stored, true, nil).Once()

	chk, err := f.idem.CheckAndReserve(context.Background(), "cancel-order", "u1:k")
	require.NoError(t, err)
	assert.True(t, chk.AlreadyCompleted)
	assert.Equal(t, "3", chk.Record.ResourceID)
	cache.AssertExpectations(t)
}

func TestIdempotencyStore_CacheErrorFallsBackToDatabase(t *testing.T) {
	cache := &replayCacheMock{}
	f := newFixtureWith(t, testExecutorOptions(), cache)
	ctx := context.Background()

	cache.On("Get", mock.Anything, "cancel-order", "u1:k").Return(model.IdempotencyRecord{}, false, errors.New("redis down"))
	cache.On("Set", mock.Anything, mock.MatchedBy(func(rec model.IdempotencyRecord) bool {
		return rec.Key == "u1:k"
	})).Return(errors.New("redis down"))

	require.NoError(t, f.store.WithinTx(ctx, func(r repo.TxRepos) error {
		_, err := f.idem.Record(ctx, r, "cancel-order", "u1:k", "1", "ok")
		return err
	}))

	chk, err := f.idem.CheckAndReserve(ctx, "cancel-order", "u1:k")
	require.NoError(t, err)
	assert.True(t, chk.AlreadyCompleted)
	cache.AssertCalled(t, "Set", mock.Anything, mock.Anything)
}

func TestIdempotencyStore_RejectsEmptyKey(t *testing.T) {
	f := newFixture(t)
	_, err := f.idem.CheckAndReserve(context.Background(), "cancel-order", "")
	assert.ErrorIs(t, err, usecase.ErrInvalidInput)
}

func TestScopedKey(t *testing.T) {
	assert.Equal(t, "u42:abc", usecase.ScopedKey(42, "abc"))
}
