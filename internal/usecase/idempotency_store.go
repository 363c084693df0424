package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const maxIdempotencyKeyLen = 255

// 完了済み結果の読み取りキャッシュ。なくても動く（DBが正）。
type ReplayCache interface {
	Get(ctx context.Context, scope, key string) (model.IdempotencyRecord, bool, error)
	Set(ctx context.Context, rec model.IdempotencyRecord) error
}

type CheckResult struct {
	AlreadyCompleted bool
	Record           model.IdempotencyRecord
}

// 冪等キーの記録。
// 実行済みかどうかの最終判定は (scope, key) のユニーク制約で、
// Recordは副作用と同じTxで書く。
type IdempotencyStore struct {
	records repo.IdempotencyRepository
	cache   ReplayCache
	clock   Clock
	log     *zap.Logger
}

func NewIdempotencyStore(records repo.IdempotencyRepository, cache ReplayCache, clock Clock, log *zap.Logger) *IdempotencyStore {
	if clock == nil {
		clock = SystemClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &IdempotencyStore{records: records, cache: cache, clock: clock, log: log}
}

// 時刻順のULID。呼び出し側がキーを渡さないとき用
func (s *IdempotencyStore) GenerateKey(scope string) string {
	return scope + "_" + ulid.Make().String()
}

// ユーザーごとにキーの名前空間を分ける
func ScopedKey(actorID int64, key string) string {
	return fmt.Sprintf("u%d:%s", actorID, key)
}

// 完了済みなら保存済みの結果を返す。ここでは何も書かない。
// 同時に来た2つ目は、コミット時のユニーク制約違反で弾かれる。
func (s *IdempotencyStore) CheckAndReserve(ctx context.Context, scope, key string) (CheckResult, error) {
	if scope == "" || key == "" {
		return CheckResult{}, fmt.Errorf("%w: empty idempotency scope or key", ErrInvalidInput)
	}

	if s.cache != nil {
		rec, ok, err := s.cache.Get(ctx, scope, key)
		if err != nil {
			s.log.Warn("idempotency cache get failed", zap.String("scope", scope), zap.Error(err))
		} else if ok {
			return CheckResult{AlreadyCompleted: true, Record: rec}, nil
		}
	}

	rec, err := s.records.Find(ctx, scope, key)
	if errors.Is(err, repo.ErrNotFound) {
		return CheckResult{}, nil
	}
	if err != nil {
		return CheckResult{}, err
	}
	s.Remember(ctx, rec)
	return CheckResult{AlreadyCompleted: true, Record: rec}, nil
}

// 副作用と同じTx(r)で呼ぶ。既にあれば repository.ErrDuplicate。
func (s *IdempotencyStore) Record(ctx context.Context, r repo.TxRepos, scope, key, resourceID string, result any) (model.IdempotencyRecord, error) {
	b, err := json.Marshal(result)
	if err != nil {
		return model.IdempotencyRecord{}, fmt.Errorf("marshal idempotent result: %w", err)
	}
	rec := model.IdempotencyRecord{
		Scope:      scope,
		Key:        key,
		ResourceID: resourceID,
		Result:     b,
		CreatedAt:  s.clock.Now(),
	}
	if err := r.Idempotency().Create(ctx, rec); err != nil {
		return model.IdempotencyRecord{}, err
	}
	return rec, nil
}

// コミット後にキャッシュへ。失敗してもログだけ
func (s *IdempotencyStore) Remember(ctx context.Context, rec model.IdempotencyRecord) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, rec); err != nil {
		s.log.Warn("idempotency cache set failed", zap.String("scope", rec.Scope), zap.Error(err))
	}
}

func normalizeIdempotencyKey(raw string) (string, error) {
	key := strings.TrimSpace(raw)
	if len(key) > maxIdempotencyKeyLen {
		return "", fmt.Errorf("%w: idempotency key too long", ErrInvalidInput)
	}
	return key, nil
}
